package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/socialfeed/errs"
	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/utils"
)

// NewUser is the input for creating an account. Password is optional; accounts
// created without one cannot log in.
type NewUser struct {
	Username    string  `validate:"required,min=3,max=30,alphanumunderscore"`
	Email       string  `validate:"required,email,max=255"`
	DisplayName string  `validate:"required,min=1,max=50"`
	Bio         *string `validate:"omitempty,max=160"`
	Avatar      *string `validate:"omitempty,url,max=512"`
	Password    string  `validate:"omitempty,min=6,max=72"`
	Provider    string  `validate:"-"`
	ProviderID  string  `validate:"-"`
}

// RegisterInput is the input for self-service registration.
type RegisterInput struct {
	Username    string  `validate:"required"`
	Email       string  `validate:"required"`
	Password    string  `validate:"required,min=6,max=72"`
	DisplayName string  `validate:"-"`
	Bio         *string `validate:"-"`
	Avatar      *string `validate:"-"`
}

// UpdateUser carries the editable profile fields. ID, when set, must match the viewer.
type UpdateUser struct {
	ID          uint    `validate:"-"`
	DisplayName *string `validate:"omitempty,min=1,max=50"`
	Bio         *string `validate:"omitempty,max=160"`
	Avatar      *string `validate:"omitempty,url,max=512"`
}

// AuthPayload is returned by register and login.
type AuthPayload struct {
	Token string
	User  *models.User
}

// UserService manages accounts and authentication.
type UserService struct {
	db     *gorm.DB
	follow *FollowService
	tokens *utils.TokenManager
}

// NewUserService creates a UserService. tokens may be nil when register and
// login are not served.
func NewUserService(db *gorm.DB, follow *FollowService, tokens *utils.TokenManager) *UserService {
	return &UserService{db: db, follow: follow, tokens: tokens}
}

// Create validates and inserts a user, then runs the auto-friend bootstrap.
// A failed bootstrap is logged and never fails the creation.
func (us *UserService) Create(ctx context.Context, in NewUser) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.DisplayName = utils.SanitizeText(in.DisplayName)
	in.Bio = emptyToNil(sanitizeOptional(in.Bio))
	in.Avatar = emptyToNil(trimOptional(in.Avatar))
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := us.ensureUnique(ctx, in.Username, in.Email); err != nil {
		return nil, err
	}

	user := models.User{
		Username:    in.Username,
		Email:       in.Email,
		DisplayName: in.DisplayName,
		Bio:         in.Bio,
		Avatar:      in.Avatar,
		Provider:    in.Provider,
		ProviderID:  in.ProviderID,
	}
	if in.Password != "" {
		hash, err := utils.HashPassword(in.Password)
		if err != nil {
			return nil, errs.Internal("failed to hash password", err)
		}
		user.PasswordHash = hash
	}

	if err := us.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errs.Invalid("username or email already in use")
		}
		return nil, errs.Internal("failed to create user", err)
	}

	if n, err := us.follow.BootstrapNewUser(ctx, user.ID); err != nil {
		utils.Logger.Warn("auto-friend bootstrap failed", zap.Uint("user_id", user.ID), zap.Error(err))
	} else {
		utils.Logger.Debug("auto-friend bootstrap done", zap.Uint("user_id", user.ID), zap.Int("edges", n))
	}
	return &user, nil
}

// Register creates a user with a password and issues a bearer token.
func (us *UserService) Register(ctx context.Context, in RegisterInput) (*AuthPayload, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = strings.TrimSpace(in.Username)
	}
	user, err := us.Create(ctx, NewUser{
		Username:    in.Username,
		Email:       in.Email,
		DisplayName: displayName,
		Bio:         in.Bio,
		Avatar:      in.Avatar,
		Password:    in.Password,
	})
	if err != nil {
		return nil, err
	}
	return us.issue(user)
}

// Login checks the credentials and issues a bearer token.
func (us *UserService) Login(ctx context.Context, email, password string) (*AuthPayload, error) {
	var user models.User
	err := us.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Unauthenticated("invalid email or password")
		}
		return nil, errs.Internal("failed to look up user", err)
	}
	if user.PasswordHash == "" || !utils.CheckPassword(user.PasswordHash, password) {
		return nil, errs.Unauthenticated("invalid email or password")
	}
	return us.issue(&user)
}

func (us *UserService) issue(user *models.User) (*AuthPayload, error) {
	if us.tokens == nil {
		return nil, errs.Internal("token issuing is not configured", nil)
	}
	token, err := us.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, errs.Internal("failed to generate token", err)
	}
	return &AuthPayload{Token: token, User: user}, nil
}

func (us *UserService) ensureUnique(ctx context.Context, username, email string) error {
	var existing []models.User
	err := us.db.WithContext(ctx).Select("username", "email").
		Where("username = ? OR email = ?", username, email).
		Limit(2).Find(&existing).Error
	if err != nil {
		return errs.Internal("failed to check uniqueness", err)
	}
	for _, u := range existing {
		if u.Username == username {
			return errs.Invalid("username already taken")
		}
		if u.Email == email {
			return errs.Invalid("email already registered")
		}
	}
	return nil
}

// ByID returns the user with the given id.
func (us *UserService) ByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := us.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("user")
		}
		return nil, errs.Internal("failed to get user", err)
	}
	return &user, nil
}

// ByIDs returns the users with the given ids ordered by id; unknown ids are skipped.
func (us *UserService) ByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := us.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&users).Error; err != nil {
		return nil, errs.Internal("failed to get users", err)
	}
	return users, nil
}

// List returns every user ordered by id.
func (us *UserService) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := us.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, errs.Internal("failed to list users", err)
	}
	return users, nil
}

// Exists reports whether a user with the given id exists.
func (us *UserService) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := us.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, errs.Internal("failed to look up user", err)
	}
	return count > 0, nil
}

// Update edits the viewer's own profile.
func (us *UserService) Update(ctx context.Context, viewerID uint, in UpdateUser) (*models.User, error) {
	if in.ID != 0 && in.ID != viewerID {
		return nil, errs.Forbidden("you can only update your own profile")
	}
	if in.DisplayName != nil {
		v := utils.SanitizeText(*in.DisplayName)
		in.DisplayName = &v
	}
	// an empty bio or avatar clears the field
	updates := map[string]interface{}{}
	if in.Bio = sanitizeOptional(in.Bio); in.Bio != nil && *in.Bio == "" {
		updates["bio"] = nil
		in.Bio = nil
	}
	if in.Avatar = trimOptional(in.Avatar); in.Avatar != nil && *in.Avatar == "" {
		updates["avatar"] = nil
		in.Avatar = nil
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user, err := us.ByID(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if in.DisplayName != nil {
		updates["display_name"] = *in.DisplayName
	}
	if in.Bio != nil {
		updates["bio"] = *in.Bio
	}
	if in.Avatar != nil {
		updates["avatar"] = *in.Avatar
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := us.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, errs.Internal("failed to update user", err)
	}
	return us.ByID(ctx, viewerID)
}

// PostCount counts the posts authored by userID.
func (us *UserService) PostCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := us.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", userID).Count(&count).Error; err != nil {
		return 0, errs.Internal("failed to count posts", err)
	}
	return count, nil
}

func sanitizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := utils.SanitizeText(*s)
	return &v
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
