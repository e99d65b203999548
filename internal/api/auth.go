package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"dentalclinic/m/domain"
	"dentalclinic/m/internal/database"
	"dentalclinic/m/internal/validate"
)

// Authentication helpers

type authClaims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(user domain.User) (string, error) {
	claims := authClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok || claims.UserID <= 0 {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Auth Handlers

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
	Lastname string `json:"lastname" validate:"required"`
	Tuition  string `json:"tuition"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		h.respondErr(w, r, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}

	user := domain.User{Email: req.Email, Name: req.Name, Lastname: req.Lastname, Tuition: req.Tuition}
	err = h.db.QueryRowxContext(r.Context(), h.db.Rebind(`INSERT INTO users (email, password_hash, name, lastname, tuition) VALUES (?, ?, ?, ?, ?) RETURNING id`),
		user.Email, string(hashed), user.Name, user.Lastname, user.Tuition).Scan(&user.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			respondError(w, http.StatusConflict, "email already exists")
			return
		}
		h.respondErr(w, r, domain.Storage("insert user", err))
		return
	}

	token, err := h.generateToken(user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	h.log.Info("user registered", zap.Int64("user_id", user.ID))
	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	var user domain.User
	err := h.db.GetContext(r.Context(), &user, h.db.Rebind(`SELECT id, email, password_hash, name, lastname, tuition FROM users WHERE email = ?`), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateToken(user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	user.Password = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	var user domain.User
	err := h.db.GetContext(r.Context(), &user, h.db.Rebind(`SELECT id, email, name, lastname, tuition FROM users WHERE id = ?`), userIDFrom(r))
	if errors.Is(err, sql.ErrNoRows) {
		h.respondErr(w, r, domain.NotFound("user"))
		return
	}
	if err != nil {
		h.respondErr(w, r, domain.Storage("load profile", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]domain.User{"user": user})
}

type profileRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Tuition string `json:"tuition"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		h.respondErr(w, r, err)
		return
	}

	uid := userIDFrom(r)
	var taken int
	if err := h.db.GetContext(r.Context(), &taken, h.db.Rebind(`SELECT COUNT(*) FROM users WHERE email = ? AND id <> ?`), req.Email, uid); err != nil {
		h.respondErr(w, r, domain.Storage("check email", err))
		return
	}
	if taken > 0 {
		respondError(w, http.StatusConflict, "email already in use")
		return
	}
	if _, err := h.db.ExecContext(r.Context(), h.db.Rebind(`UPDATE users SET email = ?, tuition = ? WHERE id = ?`), req.Email, req.Tuition, uid); err != nil {
		h.respondErr(w, r, domain.Storage("update profile", err))
		return
	}
	respondMessage(w, http.StatusOK, "profile updated")
}
