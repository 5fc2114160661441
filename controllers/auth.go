package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"wopanel/models"
)

const accessTokenTTL = 60 * time.Minute

func (a *API) signToken(claims *models.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.Cfg.SecretKey))
}

func (a *API) parseToken(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.Cfg.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func (a *API) accessToken(user *models.User, mfaPassed bool) (string, error) {
	return a.signToken(&models.Claims{
		Username:  user.Username,
		Role:      user.Role,
		MFAPassed: mfaPassed,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(accessTokenTTL).Unix(),
		},
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	MFAToken string `json:"mfa_token"`
}

// Login verifies credentials (and the TOTP code when MFA is on) and issues
// a bearer token.
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := a.Store.GetUserByUsername(req.Username)
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	mfaPassed := false
	if user.MFAEnabled {
		if req.MFAToken == "" {
			c.JSON(http.StatusOK, gin.H{"access_token": "", "token_type": "bearer", "mfa_required": true})
			return
		}
		if !totp.Validate(req.MFAToken, user.MFASecret) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid MFA token"})
			return
		}
		mfaPassed = true
	}

	token, err := a.accessToken(user, mfaPassed)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not generate token"})
		return
	}
	a.Audit.Record(user.Username, "login", user.Username, "success")
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// Logout exists for client symmetry; tokens are stateless.
func (a *API) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

type passwordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

// RequestPasswordReset mints a short-lived typed token. The response is
// deliberately identical whether or not the account exists.
func (a *API) RequestPasswordReset(c *gin.Context) {
	var req passwordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := a.Store.GetUserByUsername(req.Email)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"message": "If an account with that email exists, a password reset link has been sent."})
		return
	}
	token, err := a.signToken(&models.Claims{
		Username:  user.Username,
		TokenType: "password-reset",
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not generate token"})
		return
	}
	// TODO: deliver by email once an SMTP relay is configured; until then
	// the token is returned for operator use.
	c.JSON(http.StatusOK, gin.H{"message": "Password reset token generated.", "token": token})
}

type tokenVerifyRequest struct {
	Token string `json:"token" binding:"required"`
}

func (a *API) VerifyResetToken(c *gin.Context) {
	var req tokenVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, err := a.parseToken(req.Token)
	if err != nil || claims.TokenType != "password-reset" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "username": claims.Username})
}

type passwordReset struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (a *API) ResetPassword(c *gin.Context) {
	var req passwordReset
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, err := a.parseToken(req.Token)
	if err != nil || claims.TokenType != "password-reset" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}
	user, err := a.Store.GetUserByUsername(claims.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	user.HashedPassword = string(hashed)
	if err := a.Store.SaveUser(user); err != nil {
		respondError(c, err)
		return
	}
	a.Audit.Record(user.Username, "password reset", user.Username, "success")
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// MFASetup generates and stores a TOTP secret; the user confirms it via
// MFAVerify before enforcement starts.
func (a *API) MFASetup(c *gin.Context) {
	user := currentUser(c)
	if user.MFAEnabled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MFA is already enabled"})
		return
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "wopanel",
		AccountName: user.Username,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	user.MFASecret = key.Secret()
	if err := a.Store.SaveUser(user); err != nil {
		respondError(c, err)
		return
	}
	a.Audit.Record(user.Username, "mfa setup initiated", user.Username, "success")
	c.JSON(http.StatusOK, gin.H{"secret": key.Secret(), "provisioning_uri": key.URL()})
}

type mfaVerifyRequest struct {
	Token string `json:"token" binding:"required"`
}

func (a *API) MFAVerify(c *gin.Context) {
	user := currentUser(c)
	var req mfaVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if user.MFASecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MFA is not set up"})
		return
	}
	if !totp.Validate(req.Token, user.MFASecret) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
		return
	}
	user.MFAEnabled = true
	if err := a.Store.SaveUser(user); err != nil {
		respondError(c, err)
		return
	}
	a.Audit.Record(user.Username, "mfa enabled", user.Username, "success")
	c.JSON(http.StatusOK, gin.H{"message": "MFA enabled successfully"})
}

func (a *API) MFADisable(c *gin.Context) {
	user := currentUser(c)
	var req mfaVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !user.MFAEnabled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MFA is not enabled"})
		return
	}
	if !totp.Validate(req.Token, user.MFASecret) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
		return
	}
	user.MFAEnabled = false
	user.MFASecret = ""
	if err := a.Store.SaveUser(user); err != nil {
		respondError(c, err)
		return
	}
	a.Audit.Record(user.Username, "mfa disabled", user.Username, "success")
	c.JSON(http.StatusOK, gin.H{"message": "MFA disabled successfully"})
}

func (a *API) Me(c *gin.Context) {
	user := currentUser(c)
	c.JSON(http.StatusOK, gin.H{
		"username":    user.Username,
		"role":        user.Role,
		"mfa_enabled": user.MFAEnabled,
	})
}

type settingsRequest struct {
	Username        string `json:"username"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdateSettings lets a user change their own username or password.
func (a *API) UpdateSettings(c *gin.Context) {
	user := currentUser(c)
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Username != "" && req.Username != user.Username {
		if _, err := a.Store.GetUserByUsername(req.Username); err == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username already taken"})
			return
		}
		user.Username = req.Username
	}
	if req.NewPassword != "" {
		if req.CurrentPassword == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Current password required"})
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.CurrentPassword)) != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid current password"})
			return
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		user.HashedPassword = string(hashed)
	}
	if err := a.Store.SaveUser(user); err != nil {
		respondError(c, err)
		return
	}
	a.Audit.Record(user.Username, "settings updated", user.Username, "success")
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Settings updated"})
}
