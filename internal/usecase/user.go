package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/veratrail/veratrail"
	"github.com/veratrail/veratrail/internal/domain"
)

type UserUsecase struct {
	repo     UserRepository
	identity IdentityGateway
	signal   EventPublisher
	config   domain.Config
}

func NewUserUsecase(repo UserRepository, identity IdentityGateway, signal EventPublisher, config domain.Config) *UserUsecase {
	return &UserUsecase{repo: repo, identity: identity, signal: signal, config: config}
}

type InviteUserInput struct {
	Email     string
	LegalName string
	Initials  string
	Role      domain.Role
}

func (uc *UserUsecase) emit(ctx context.Context, entry domain.AuditEntry) {
	if uc.signal == nil {
		return
	}
	err := uc.signal.Publish(ctx, veratrail.Event{
		Type:       entry.Action,
		TargetType: string(entry.TargetType),
		TargetID:   entry.TargetID,
		ActorID:    entry.ActorID,
		Timestamp:  entry.Timestamp,
	})
	if err != nil {
		slog.WarnContext(ctx, "event publish failed",
			slog.String("error", err.Error()),
			slog.String("module", "user"),
		)
	}
}

// Invite creates an invited account and returns the one-time invitation
// token. Only its bcrypt hash is stored.
func (uc *UserUsecase) Invite(ctx context.Context, actor domain.User, input InviteUserInput) (domain.User, string, error) {
	if !domain.HasCapability(actor.Role, domain.CapManageUsers) {
		return domain.User{}, "", domain.Errf(domain.ErrUnauthorized.Code, "role %s may not manage users", actor.Role)
	}
	if !domain.CanAssignRole(actor.Role, input.Role, false, uc.config.TrialLicense) {
		return domain.User{}, "", domain.Errf(domain.ErrUnauthorized.Code, "role %s may not assign role %s", actor.Role, input.Role)
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.LegalName == "" {
		return domain.User{}, "", domain.Errf(domain.ErrBadRequest.Code, "email and legal name are required")
	}
	if !domain.ValidInitials(input.Initials) {
		return domain.User{}, "", domain.Errf(domain.ErrBadRequest.Code, "initials must be 1-3 letters")
	}

	if _, err := uc.repo.GetByEmail(ctx, email); err == nil {
		return domain.User{}, "", domain.Errf(domain.ErrConflict.Code, "an account for %s already exists", email)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, "", err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return domain.User{}, "", err
	}
	token := hex.EncodeToString(raw)
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, "", err
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:               uuid.NewString(),
		Email:            email,
		LegalName:        input.LegalName,
		Initials:         strings.ToUpper(input.Initials),
		Role:             input.Role,
		InvitationStatus: domain.StatusInvited,
		Verification:     domain.NotVerified,
		InviteTokenHash:  string(hash),
		CDate:            now,
		MDate:            now,
	}

	entry := newEntry(actor, domain.ActionUserInvited, domain.TargetUser, user.ID, map[string]any{
		"email": email,
		"role":  string(user.Role),
	})
	if err := uc.repo.Create(ctx, user, entry); err != nil {
		return domain.User{}, "", err
	}
	uc.emit(ctx, entry)
	return user, token, nil
}

// CompleteSignIn exchanges the provider access token for an identity
// assertion and activates an invited account on first sign-in.
func (uc *UserUsecase) CompleteSignIn(ctx context.Context, accessToken, inviteToken string) (domain.User, error) {
	ident, err := uc.identity.Resolve(ctx, accessToken)
	if err != nil {
		return domain.User{}, err
	}

	user, err := uc.repo.GetByEmail(ctx, strings.ToLower(ident.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.Errf(domain.ErrUnauthorized.Code, "no account for %s", ident.Email)
		}
		return domain.User{}, err
	}

	switch user.InvitationStatus {
	case domain.StatusActive:
		return user, nil
	case domain.StatusInvited:
		if bcrypt.CompareHashAndPassword([]byte(user.InviteTokenHash), []byte(inviteToken)) != nil {
			return domain.User{}, domain.Errf(domain.ErrUnauthorized.Code, "invalid invitation token")
		}
		if err := user.Activate(ident.ObjectID, ident.TenantID, time.Now().UTC()); err != nil {
			return domain.User{}, err
		}
		entry := newEntry(user, domain.ActionUserActivated, domain.TargetUser, user.ID, nil)
		if err := uc.repo.Update(ctx, user, entry); err != nil {
			return domain.User{}, err
		}
		uc.emit(ctx, entry)
		return user, nil
	default:
		return domain.User{}, domain.Errf(domain.ErrUnauthorized.Code, "account is %s", user.InvitationStatus)
	}
}

func (uc *UserUsecase) Get(ctx context.Context, actor domain.User, id string) (domain.User, error) {
	if actor.ID != id && !domain.HasCapability(actor.Role, domain.CapManageUsers) {
		return domain.User{}, domain.Errf(domain.ErrNotFound.Code, "user %s not found", id)
	}
	return uc.repo.Get(ctx, id)
}

func (uc *UserUsecase) loadManaged(ctx context.Context, actor domain.User, id string) (domain.User, error) {
	if !domain.HasCapability(actor.Role, domain.CapManageUsers) {
		return domain.User{}, domain.Errf(domain.ErrUnauthorized.Code, "role %s may not manage users", actor.Role)
	}
	return uc.repo.Get(ctx, id)
}

func (uc *UserUsecase) Withdraw(ctx context.Context, actor domain.User, id string) (domain.User, error) {
	user, err := uc.loadManaged(ctx, actor, id)
	if err != nil {
		return domain.User{}, err
	}
	if err := user.Withdraw(); err != nil {
		return domain.User{}, err
	}
	entry := newEntry(actor, domain.ActionUserWithdrawn, domain.TargetUser, user.ID, nil)
	if err := uc.repo.Update(ctx, user, entry); err != nil {
		return domain.User{}, err
	}
	uc.emit(ctx, entry)
	return user, nil
}

func (uc *UserUsecase) Deactivate(ctx context.Context, actor domain.User, id string) (domain.User, error) {
	user, err := uc.loadManaged(ctx, actor, id)
	if err != nil {
		return domain.User{}, err
	}
	if err := user.Deactivate(); err != nil {
		return domain.User{}, err
	}
	entry := newEntry(actor, domain.ActionUserDeactivated, domain.TargetUser, user.ID, nil)
	if err := uc.repo.Update(ctx, user, entry); err != nil {
		return domain.User{}, err
	}
	uc.emit(ctx, entry)
	return user, nil
}

func (uc *UserUsecase) Reactivate(ctx context.Context, actor domain.User, id string) (domain.User, error) {
	user, err := uc.loadManaged(ctx, actor, id)
	if err != nil {
		return domain.User{}, err
	}
	if err := user.Reactivate(); err != nil {
		return domain.User{}, err
	}
	entry := newEntry(actor, domain.ActionUserReactivated, domain.TargetUser, user.ID, nil)
	if err := uc.repo.Update(ctx, user, entry); err != nil {
		return domain.User{}, err
	}
	uc.emit(ctx, entry)
	return user, nil
}

func (uc *UserUsecase) ChangeRole(ctx context.Context, actor domain.User, id string, role domain.Role) (domain.User, error) {
	user, err := uc.loadManaged(ctx, actor, id)
	if err != nil {
		return domain.User{}, err
	}
	selfEdit := actor.ID == id
	if !domain.CanAssignRole(actor.Role, role, selfEdit, uc.config.TrialLicense) {
		return domain.User{}, domain.Errf(domain.ErrUnauthorized.Code, "role %s may not assign role %s", actor.Role, role)
	}
	from := user.Role
	user.Role = role
	entry := newEntry(actor, domain.ActionUserRoleChanged, domain.TargetUser, user.ID, map[string]any{
		"from": string(from),
		"to":   string(role),
	})
	if err := uc.repo.Update(ctx, user, entry); err != nil {
		return domain.User{}, err
	}
	uc.emit(ctx, entry)
	return user, nil
}

// SetViewScope toggles the canAccessAllDocuments read override.
func (uc *UserUsecase) SetViewScope(ctx context.Context, actor domain.User, id string, canAccessAll bool) (domain.User, error) {
	user, err := uc.loadManaged(ctx, actor, id)
	if err != nil {
		return domain.User{}, err
	}
	user.CanAccessAllDocuments = canAccessAll
	entry := newEntry(actor, domain.ActionUserViewScopeChanged, domain.TargetUser, user.ID, map[string]any{
		"canAccessAllDocuments": canAccessAll,
	})
	if err := uc.repo.Update(ctx, user, entry); err != nil {
		return domain.User{}, err
	}
	uc.emit(ctx, entry)
	return user, nil
}

// AcceptERSD records the actor's acceptance of the compliance disclosure.
func (uc *UserUsecase) AcceptERSD(ctx context.Context, actor domain.User) (domain.User, error) {
	user, err := uc.repo.Get(ctx, actor.ID)
	if err != nil {
		return domain.User{}, err
	}
	if user.ErsdAcceptedAt != nil {
		return user, nil
	}
	user.AcceptERSD(time.Now().UTC())
	entry := newEntry(user, domain.ActionUserErsdAccepted, domain.TargetUser, user.ID, nil)
	if err := uc.repo.Update(ctx, user, entry); err != nil {
		return domain.User{}, err
	}
	uc.emit(ctx, entry)
	return user, nil
}
