package user

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	repo      *Repository
	jwtSecret string
}

type CollabJWTClaims struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func NewService(repo *Repository, secret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: secret,
	}
}

func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*RegisterRequest, error) {
	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Username:    req.Username,
		Password:    string(hashedPwd),
		DisplayName: req.DisplayName,
	}

	if _, err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	return &RegisterRequest{Username: u.Username}, nil
}

func (s *Service) Login(ctx context.Context, req *RegisterRequest) (*LoginResponse, error) {
	u, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		return nil, err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, CollabJWTClaims{
		ID:       u.ID,
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "collab-x",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	})

	ss, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		AccessToken: ss,
		ID:          u.ID,
		Username:    u.Username,
	}, nil
}

func (s *Service) ValidateToken(tokenString string) (int, string, error) {
	claims := &CollabJWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})

	if err != nil || !token.Valid {
		return 0, "", err
	}

	return claims.ID, claims.Username, nil
}

func (s *Service) SearchUsers(ctx context.Context, query string) ([]User, error) {
	return s.repo.SearchUsers(ctx, query)
}

// --- Authorization boundary consumed by the chat and workspace gates ---

func (s *Service) GetUser(ctx context.Context, id int) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *Service) AreContacts(ctx context.Context, userID, contactID int) (bool, error) {
	return s.repo.AreContacts(ctx, userID, contactID)
}

func (s *Service) GroupExists(ctx context.Context, groupID int) (bool, error) {
	_, err := s.repo.GetGroup(ctx, groupID)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) IsGroupMember(ctx context.Context, groupID, userID int) (bool, error) {
	return s.repo.IsGroupMember(ctx, groupID, userID)
}

// --- Contact / group management ---

func (s *Service) ListContacts(ctx context.Context, userID int) ([]User, error) {
	return s.repo.ListContacts(ctx, userID)
}

func (s *Service) SendContactRequest(ctx context.Context, fromUser, toUser int) error {
	if _, err := s.repo.GetUserByID(ctx, toUser); err != nil {
		return err
	}
	return s.repo.CreateContactRequest(ctx, fromUser, toUser)
}

func (s *Service) ListContactRequests(ctx context.Context, toUser int) ([]ContactRequest, error) {
	return s.repo.ListContactRequests(ctx, toUser)
}

func (s *Service) AcceptContactRequest(ctx context.Context, requestID, toUser int) error {
	return s.repo.AcceptContactRequest(ctx, requestID, toUser)
}

func (s *Service) DeclineContactRequest(ctx context.Context, requestID, toUser int) error {
	return s.repo.DeclineContactRequest(ctx, requestID, toUser)
}

func (s *Service) CreateGroup(ctx context.Context, name string, creatorID int, memberIDs []int) (*Group, error) {
	return s.repo.CreateGroup(ctx, name, creatorID, memberIDs)
}

func (s *Service) AddGroupMember(ctx context.Context, groupID, userID int) error {
	return s.repo.AddGroupMember(ctx, groupID, userID)
}

func (s *Service) ListGroups(ctx context.Context, userID int) ([]Group, error) {
	return s.repo.ListGroups(ctx, userID)
}
