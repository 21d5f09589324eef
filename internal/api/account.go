package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	goaway "github.com/TwiN/go-away"

	"github.com/jdholdren/myjournal/internal/auth"
	jerrs "github.com/jdholdren/myjournal/internal/errors"
	"github.com/jdholdren/myjournal/internal/myjournal"
	"github.com/jdholdren/myjournal/internal/serverutil"
)

const minPasswordLen = 8

type RegisterReq struct {
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

func (req RegisterReq) Validate() error {
	var details []jerrs.Detail
	if d, ok := checkUsername(req.Username); !ok {
		details = append(details, d)
	}
	if d, ok := checkEmail(req.Email); !ok {
		details = append(details, d)
	}
	if len(req.Password) < minPasswordLen {
		details = append(details, jerrs.Detail{Field: "password", Error: fmt.Sprintf("must be at least %d characters", minPasswordLen)})
	}
	if len(details) > 0 {
		return jerrs.E("invalid registration", http.StatusBadRequest, details)
	}

	return nil
}

func checkUsername(username string) (jerrs.Detail, bool) {
	switch {
	case strings.TrimSpace(username) == "":
		return jerrs.Detail{Field: "username", Error: "is required"}, false
	case goaway.IsProfane(username):
		return jerrs.Detail{Field: "username", Error: "contains profanity"}, false
	}
	return jerrs.Detail{}, true
}

func checkEmail(email string) (jerrs.Detail, bool) {
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return jerrs.Detail{Field: "email", Error: "must be a valid email address"}, false
	}
	return jerrs.Detail{}, true
}

type TokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) postRegister(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	req, err := serverutil.DecodeValid[RegisterReq](r.Body)
	if err != nil {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.repo.UserByEmail(ctx, email); err == nil {
		return jerrs.E("email already registered", http.StatusBadRequest)
	} else if !errors.Is(err, myjournal.ErrNotFound) {
		return err
	}
	if _, err := s.repo.UserByUsername(ctx, req.Username); err == nil {
		return jerrs.E("username already taken", http.StatusBadRequest)
	} else if !errors.Is(err, myjournal.ErrNotFound) {
		return err
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return err
	}
	usr, err := s.repo.InsertUser(ctx, myjournal.User{
		Username:       req.Username,
		Email:          email,
		HashedPassword: hashed,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
	})
	if errors.Is(err, myjournal.ErrConflict) {
		// Lost a race with another registration
		return jerrs.E("email or username already registered", http.StatusBadRequest)
	}
	if err != nil {
		return err
	}

	tok, err := s.tokens.Issue(usr.ID, usr.Email)
	if err != nil {
		return err
	}
	s.setSession(w, r, tok)

	return serverutil.WriteJSON(w, http.StatusCreated, TokenResp{AccessToken: tok, TokenType: "bearer"})
}

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req LoginReq) Validate() error {
	if req.Email == "" || req.Password == "" {
		return jerrs.E("email and password are required", http.StatusBadRequest)
	}
	return nil
}

func (s *Server) postLogin(w http.ResponseWriter, r *http.Request) error {
	req, err := serverutil.DecodeValid[LoginReq](r.Body)
	if err != nil {
		return err
	}

	badCreds := jerrs.E("incorrect email or password", http.StatusUnauthorized)
	usr, err := s.repo.UserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, myjournal.ErrNotFound) {
		return badCreds
	}
	if err != nil {
		return err
	}
	ok, err := auth.VerifyPassword(req.Password, usr.HashedPassword)
	if err != nil {
		return err
	}
	if !ok || !usr.IsActive {
		return badCreds
	}

	tok, err := s.tokens.Issue(usr.ID, usr.Email)
	if err != nil {
		return err
	}
	s.setSession(w, r, tok)

	return serverutil.WriteJSON(w, http.StatusOK, TokenResp{AccessToken: tok, TokenType: "bearer"})
}

func (s *Server) postLogout(w http.ResponseWriter, r *http.Request) error {
	s.setSession(w, r, "")
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type UserResp struct {
	ID              int64     `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	FirstName       *string   `json:"first_name"`
	LastName        *string   `json:"last_name"`
	NewsletterOptIn bool      `json:"newsletter_opt_in"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

func apiUser(u myjournal.User) UserResp {
	return UserResp{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		NewsletterOptIn: u.NewsletterOptIn,
		IsActive:        u.IsActive,
		CreatedAt:       u.CreatedAt,
	}
}

// The caller's user row. A valid token for a user that's gone is a 401.
func (s *Server) caller(r *http.Request) (myjournal.User, error) {
	usr, err := s.repo.User(r.Context(), callerID(r.Context()))
	if errors.Is(err, myjournal.ErrNotFound) {
		return myjournal.User{}, jerrs.E("could not validate credentials", http.StatusUnauthorized)
	}
	return usr, err
}

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) error {
	usr, err := s.caller(r)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, apiUser(usr))
}

type UpdateMeReq struct {
	Email           *string `json:"email"`
	Username        *string `json:"username"`
	NewsletterOptIn *bool   `json:"newsletter_opt_in"`
}

func (req UpdateMeReq) Validate() error {
	var details []jerrs.Detail
	if req.Username != nil {
		if d, ok := checkUsername(*req.Username); !ok {
			details = append(details, d)
		}
	}
	if req.Email != nil {
		if d, ok := checkEmail(*req.Email); !ok {
			details = append(details, d)
		}
	}
	if len(details) > 0 {
		return jerrs.E("invalid update", http.StatusBadRequest, details)
	}

	return nil
}

func (s *Server) patchMe(w http.ResponseWriter, r *http.Request) error {
	req, err := serverutil.DecodeValid[UpdateMeReq](r.Body)
	if err != nil {
		return err
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &email
	}

	usr, err := s.caller(r)
	if err != nil {
		return err
	}
	usr, err = s.repo.UpdateUser(r.Context(), usr.ID, myjournal.UpdateUserArgs{
		Email:           req.Email,
		Username:        req.Username,
		NewsletterOptIn: req.NewsletterOptIn,
	})
	if errors.Is(err, myjournal.ErrConflict) {
		return jerrs.E("email or username already registered", http.StatusBadRequest)
	}
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, apiUser(usr))
}
