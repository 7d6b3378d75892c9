package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/cppla/socialfeed/errs"
	"github.com/cppla/socialfeed/models"
)

// OAuthIdentity is the profile returned by a third-party provider.
type OAuthIdentity struct {
	ID          string
	Username    string
	DisplayName string
	Email       string
	AvatarURL   string
}

// LoginOAuth finds the account linked to the provider identity, creating it on
// first login, and issues a bearer token.
func (us *UserService) LoginOAuth(ctx context.Context, provider string, ident OAuthIdentity) (*AuthPayload, error) {
	if strings.TrimSpace(ident.ID) == "" {
		return nil, errs.Invalid("provider returned no account id")
	}
	var user models.User
	err := us.db.WithContext(ctx).Where("provider = ? AND provider_id = ?", provider, ident.ID).First(&user).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{}
		if ident.AvatarURL != "" {
			updates["avatar"] = ident.AvatarURL
		}
		if len(updates) > 0 {
			_ = us.db.WithContext(ctx).Model(&user).Updates(updates).Error
		}
		return us.issue(&user)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, errs.Internal("failed to look up user", err)
	}

	email := strings.TrimSpace(ident.Email)
	if email == "" {
		email = fmt.Sprintf("%s+%s@users.noreply.invalid", provider, sanitizeUsername(ident.ID))
	}
	displayName := fallback(ident.DisplayName, ident.Username, provider+" user")
	if len([]rune(displayName)) > 50 {
		displayName = string([]rune(displayName)[:50])
	}
	var avatar *string
	if ident.AvatarURL != "" {
		avatar = &ident.AvatarURL
	}

	created, err := us.Create(ctx, NewUser{
		Username:    us.ensureUniqueUsername(ctx, ident.Username, provider, ident.ID),
		Email:       email,
		DisplayName: displayName,
		Avatar:      avatar,
		Provider:    provider,
		ProviderID:  ident.ID,
	})
	if err != nil {
		return nil, err
	}
	return us.issue(created)
}

func (us *UserService) ensureUniqueUsername(ctx context.Context, base, provider, id string) string {
	base = sanitizeUsername(base)
	if len(base) < 3 {
		base = sanitizeUsername(fmt.Sprintf("%s_%s", provider, id))
	}
	if len(base) > 24 {
		base = base[:24]
	}

	candidate := base
	suffix := 1
	for {
		var count int64
		if err := us.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return candidate
		}
		if count == 0 {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", base, suffix)
		suffix++
	}
}

func sanitizeUsername(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	var builder strings.Builder
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '_' || r == '-' || r == '.' || r == '@':
			builder.WriteRune('_')
		}
	}
	return strings.Trim(builder.String(), "_")
}

func fallback(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
