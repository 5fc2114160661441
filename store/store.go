// Package store is the registry: persistent records for users, tenants,
// sites and jobs, with the data-layer invariants the orchestration code
// relies on.
package store

import (
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wopanel/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("conflict")
)

// Store wraps the gorm handle.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the sqlite registry and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Tenant{}, &models.Site{}, &models.Job{}); err != nil {
		return nil, fmt.Errorf("migrate registry: %w", err)
	}
	return &Store{db: db}, nil
}

// --- Users ---

// SeedAdmin creates the initial administrator when no account exists yet.
func (s *Store) SeedAdmin(username, hashedPassword string) error {
	var count int64
	if err := s.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return s.db.Create(&models.User{
		Username:       username,
		HashedPassword: hashedPassword,
		Role:           models.RoleAdministrator,
	}).Error
}

func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers() ([]models.User, error) {
	var users []models.User
	return users, s.db.Order("id").Find(&users).Error
}

func (s *Store) CreateUser(username, hashedPassword, role string) (*models.User, error) {
	if _, err := s.GetUserByUsername(username); err == nil {
		return nil, fmt.Errorf("%w: username already taken", ErrConflict)
	}
	user := models.User{Username: username, HashedPassword: hashedPassword, Role: role}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveUser persists field changes on an existing user.
func (s *Store) SaveUser(user *models.User) error {
	return s.db.Save(user).Error
}

func (s *Store) countAdmins() (int64, error) {
	var count int64
	err := s.db.Model(&models.User{}).Where("role = ?", models.RoleAdministrator).Count(&count).Error
	return count, err
}

// DeleteUser removes a user. Deleting the last administrator is a
// Conflict: the panel must never lock itself out.
func (s *Store) DeleteUser(id uint) error {
	user, err := s.GetUser(id)
	if err != nil {
		return err
	}
	if user.Role == models.RoleAdministrator {
		admins, err := s.countAdmins()
		if err != nil {
			return err
		}
		if admins <= 1 {
			return fmt.Errorf("%w: cannot delete the last administrator", ErrConflict)
		}
	}
	return s.db.Delete(&models.User{}, id).Error
}

// UpdateUserRole changes a user's role, refusing to demote the last
// administrator.
func (s *Store) UpdateUserRole(id uint, role string) (*models.User, error) {
	user, err := s.GetUser(id)
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleAdministrator && role != models.RoleAdministrator {
		admins, err := s.countAdmins()
		if err != nil {
			return nil, err
		}
		if admins <= 1 {
			return nil, fmt.Errorf("%w: cannot change the role of the last administrator", ErrConflict)
		}
	}
	user.Role = role
	if err := s.db.Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// --- Tenants ---

func (s *Store) GetTenant(id uint) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.First(&tenant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

func (s *Store) GetTenantBySystemUsername(username string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.Where("system_username = ?", username).First(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

// EnsureTenant returns the tenant with the given system identity,
// creating it on first sight (billing callbacks provision tenants
// implicitly). The identity must be a valid POSIX username.
func (s *Store) EnsureTenant(systemUsername, email string) (*models.Tenant, error) {
	if err := models.ValidateSystemUser(systemUsername); err != nil {
		return nil, err
	}
	tenant, err := s.GetTenantBySystemUsername(systemUsername)
	if err == nil {
		return tenant, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	created := models.Tenant{
		SystemUsername: systemUsername,
		Email:          email,
		Status:         models.TenantActive,
	}
	if err := s.db.Create(&created).Error; err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) ListTenants() ([]models.Tenant, error) {
	var tenants []models.Tenant
	return tenants, s.db.Preload("Sites").Order("id").Find(&tenants).Error
}

func (s *Store) UpdateTenantStatus(id uint, status string) (*models.Tenant, error) {
	tenant, err := s.GetTenant(id)
	if err != nil {
		return nil, err
	}
	tenant.Status = status
	if err := s.db.Save(tenant).Error; err != nil {
		return nil, err
	}
	return tenant, nil
}

// TenantSites lists the domains a tenant owns.
func (s *Store) TenantSites(tenantID uint) ([]models.Site, error) {
	var sites []models.Site
	return sites, s.db.Where("tenant_id = ?", tenantID).Find(&sites).Error
}

// DeleteTenant removes the tenant and its site rows. The caller is
// responsible for queueing the OS-level teardown of those sites first;
// the registry delete is synchronous and the cleanup asynchronous.
func (s *Store) DeleteTenant(id uint) error {
	if err := s.db.Where("tenant_id = ?", id).Delete(&models.Site{}).Error; err != nil {
		return err
	}
	return s.db.Delete(&models.Tenant{}, id).Error
}

// --- Sites ---

// CreateSite records a pending site before provisioning starts, so a
// concurrent create for the same domain is rejected here rather than
// racing at the OS level.
func (s *Store) CreateSite(domain string, tenantID *uint, phpVersion string) (*models.Site, error) {
	if err := models.ValidateDomain(domain); err != nil {
		return nil, err
	}
	if _, err := s.GetSiteByDomain(domain); err == nil {
		return nil, fmt.Errorf("%w: site already exists", ErrConflict)
	}
	site := models.Site{Domain: domain, TenantID: tenantID, PHPVersion: phpVersion}
	if err := s.db.Create(&site).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

func (s *Store) GetSiteByDomain(domain string) (*models.Site, error) {
	var site models.Site
	if err := s.db.Where("domain = ?", domain).First(&site).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &site, nil
}

func (s *Store) SaveSite(site *models.Site) error {
	return s.db.Save(site).Error
}

func (s *Store) DeleteSiteByDomain(domain string) error {
	return s.db.Where("domain = ?", domain).Delete(&models.Site{}).Error
}

// --- Jobs ---

func (s *Store) CreateJob(job *models.Job) error {
	return s.db.Create(job).Error
}

func (s *Store) SaveJob(job *models.Job) error {
	return s.db.Save(job).Error
}

func (s *Store) GetJob(id string) (*models.Job, error) {
	var job models.Job
	if err := s.db.First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (s *Store) ListJobs(limit int) ([]models.Job, error) {
	var jobs []models.Job
	return jobs, s.db.Order("created_at desc").Limit(limit).Find(&jobs).Error
}
