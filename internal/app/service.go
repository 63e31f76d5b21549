package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"conveyo/api/internal/auth"
	"conveyo/api/internal/authpw"
	"conveyo/api/internal/config"
	"conveyo/api/internal/docstore"
	"conveyo/api/internal/email"
	"conveyo/api/internal/export"
	"conveyo/api/internal/moderation"
	"conveyo/api/internal/rbac"
	"conveyo/api/internal/search"
	"conveyo/api/internal/session"
	"conveyo/api/internal/store"
	"conveyo/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       int64
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	GetUserByID(ctx context.Context, userID int64) (store.User, error)

	InsertPropertyWithStages(ctx context.Context, property store.Property, stages []store.Stage) (store.Property, error)
	GetProperty(ctx context.Context, propertyID int64) (store.Property, error)
	ListPropertiesForUser(ctx context.Context, userID int64) ([]store.Property, error)
	UpdateProperty(ctx context.Context, property store.Property) (store.Property, error)
	DeletePropertyCascade(ctx context.Context, propertyID int64) ([]string, error)
	ApproveTimeline(ctx context.Context, propertyID int64, buyerSide bool, notifs []store.Notification) (store.Property, error)
	UnlockTimeline(ctx context.Context, propertyID int64, notifs []store.Notification) (store.Property, error)

	ListStages(ctx context.Context, propertyID int64) ([]store.Stage, error)
	GetStage(ctx context.Context, propertyID, stageID int64) (store.Stage, error)
	InsertStageAt(ctx context.Context, stage store.Stage, hasPosition bool) (store.Stage, error)
	UpdateStage(ctx context.Context, stage store.Stage, advanceNext bool, notifs []store.Notification) (store.Stage, error)
	CompleteStage(ctx context.Context, propertyID, stageID int64, notifs []store.Notification) (store.Stage, error)
	DeleteStageRepack(ctx context.Context, propertyID, stageID int64) (store.Stage, error)
	ReorderStages(ctx context.Context, propertyID int64, ids []int64) error
	ResetStages(ctx context.Context, propertyID int64, notifs []store.Notification) error

	InsertMessage(ctx context.Context, message store.Message) (store.Message, error)
	GetMessage(ctx context.Context, messageID int64) (store.Message, error)
	ListMessages(ctx context.Context, propertyID int64) ([]store.Message, error)
	ListPendingMessages(ctx context.Context, propertyID int64) ([]store.Message, error)
	ResolveMessage(ctx context.Context, messageID int64, status string, approvedContent *string, approvedBy int64, notifs []store.Notification) (bool, error)

	InsertNotification(ctx context.Context, n store.Notification) error
	ListNotifications(ctx context.Context, userID int64, propertyID int64, unreadOnly bool) ([]store.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID, userID int64) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, userID int64) error

	GetStageExplanation(ctx context.Context, stage, role string) (store.StageExplanation, error)
	UpsertStageExplanation(ctx context.Context, item store.StageExplanation) (store.StageExplanation, error)
	SeedStageExplanations(ctx context.Context, items []store.StageExplanation) error

	InsertDocument(ctx context.Context, document store.Document, notifs []store.Notification) (store.Document, error)
	GetDocument(ctx context.Context, documentID int64) (store.Document, error)
	ListDocuments(ctx context.Context, propertyID int64) ([]store.Document, error)
	ReviewDocument(ctx context.Context, documentID int64, status string, reviewedBy int64, notifs []store.Notification) (bool, error)

	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, data session.Data, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (session.Data, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type objectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	PresignedGetURL(ctx context.Context, key, filename string, expiry time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	passwords *authpw.Service
	mailer    *email.Service
	ai        moderation.Client
	search    *search.Service
	objects   objectStore
	exporter  *export.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions *session.RedisStore, searchService *search.Service, objects *docstore.MinioStore, ai moderation.Client) *Service {
	svc := &Service{
		cfg:       cfg,
		store:     dataStore,
		passwords: authpw.NewService(dataStore),
		mailer: email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}),
		ai:       ai,
		search:   searchService,
		exporter: export.NewService(),
	}
	if sessions != nil {
		svc.sessions = sessions
	}
	if objects != nil {
		svc.objects = objects
	}
	return svc
}

// Bootstrap seeds the stage-explanation cache for the preset catalog so the
// lookup endpoint never misses on a stage every property starts with.
func (s *Service) Bootstrap(ctx context.Context) error {
	return s.store.SeedStageExplanations(ctx, presetExplanationSeeds())
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SMTPConfigured() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if s.sessions == nil {
		return Session{}, errors.New("session store not configured")
	}
	tokenHash := auth.HashToken(refreshToken)
	data, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, data.UserID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	if s.sessions == nil {
		return Session{}, errors.New("session store not configured")
	}
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := strconv.FormatInt(util.NewID(), 10)

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: displayName(user),
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh, err := newRefreshToken()
	if err != nil {
		return Session{}, err
	}
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), session.Data{
		UserID:    user.ID,
		Name:      displayName(user),
		Role:      user.Role,
		CreatedAt: now,
	}, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     displayName(user),
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  displayName(user),
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// Logout revokes the refresh token. Access tokens are short-lived and simply
// expire.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if s.sessions == nil || refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func displayName(user store.User) string {
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

// authorizeProperty loads the property and checks that one of the caller's
// relations to it permits op.
func (s *Service) authorizeProperty(ctx context.Context, propertyID, userID int64, op rbac.Op) (store.Property, error) {
	prop, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Property{}, domainError(http.StatusNotFound, "NOT_FOUND", "Property not found", nil)
		}
		return store.Property{}, err
	}
	if !rbac.Can(op, relationsFor(prop, userID)) {
		return store.Property{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return prop, nil
}

// relationsFor derives the caller's relations to a property from its five
// assignment columns.
func relationsFor(p store.Property, userID int64) []rbac.Relation {
	var rels []rbac.Relation
	add := func(id *int64, rel rbac.Relation) {
		if id != nil && *id == userID {
			rels = append(rels, rel)
		}
	}
	add(p.BuyerID, rbac.RelBuyer)
	add(p.SellerID, rbac.RelSeller)
	add(p.BuyerSolicitorID, rbac.RelBuyerSolicitor)
	add(p.SellerSolicitorID, rbac.RelSellerSolicitor)
	add(p.EstateAgentID, rbac.RelEstateAgent)
	return rels
}

// notifyParties builds one notification per assigned party, skipping the actor.
func notifyParties(p store.Property, actorID int64, ntype, message string) []store.Notification {
	parties := []*int64{p.BuyerID, p.BuyerSolicitorID, p.SellerSolicitorID, p.EstateAgentID, p.SellerID}
	propertyID := p.ID

	var notifs []store.Notification
	for _, party := range parties {
		if party == nil || *party == actorID {
			continue
		}
		notifs = append(notifs, store.Notification{
			ID:         util.NewID(),
			UserID:     *party,
			PropertyID: &propertyID,
			Type:       ntype,
			Message:    message,
		})
	}
	return notifs
}
