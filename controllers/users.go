package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"wopanel/models"
)

func (a *API) ListUsers(c *gin.Context) {
	users, err := a.Store.ListUsers()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

func (a *API) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role := req.Role
	if role == "" {
		role = models.RoleReadOnly
	}
	if role != models.RoleAdministrator && role != models.RoleReadOnly {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	user, err := a.Store.CreateUser(req.Username, string(hashed), role)
	if err != nil {
		respondError(c, err)
		return
	}
	a.Audit.Record(currentUser(c).Username, "user created", user.Username, "success")
	c.JSON(http.StatusCreated, user)
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (a *API) UpdateUserRole(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role != models.RoleAdministrator && req.Role != models.RoleReadOnly {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}
	user, err := a.Store.UpdateUserRole(uint(id), req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	a.Audit.Record(currentUser(c).Username, "user role updated", user.Username, "success")
	c.JSON(http.StatusOK, user)
}

func (a *API) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	actor := currentUser(c)
	if actor.ID == uint(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete your own account"})
		return
	}
	target, err := a.Store.GetUser(uint(id))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := a.Store.DeleteUser(uint(id)); err != nil {
		respondError(c, err)
		return
	}
	a.Audit.Record(actor.Username, "user deleted", target.Username, "success")
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}
