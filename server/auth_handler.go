package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"songforge/core/auth"
	"songforge/core/library"
	"songforge/logger"
	"songforge/model"
	"songforge/repository"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"` // 可以是用户名或邮箱
	Password string `json:"password"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// LoginHandler handles user login requests
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "username/email and password are required")
		return
	}

	// 支持用户名或邮箱登录
	var user *model.User
	var err error
	if strings.Contains(req.Username, "@") {
		user, err = h.Users.GetUserByEmail(r.Context(), req.Username)
	} else {
		user, err = h.Users.GetUserByUsername(r.Context(), req.Username)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warn("[Login] 用户不存在", logger.String("username", req.Username))
			writeMessage(w, http.StatusUnauthorized, "invalid username/email or password")
			return
		}
		writeError(w, r, err)
		return
	}

	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		logger.Warn("[Login] 密码验证失败", logger.String("username", req.Username))
		writeMessage(w, http.StatusUnauthorized, "invalid username/email or password")
		return
	}

	token, err := h.Tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info("[Login] 登录成功", logger.String("username", user.Username))
	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// RegisterHandler handles user registration requests
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Password == "" || req.Email == "" {
		writeMessage(w, http.StatusBadRequest, "username, password and email are required")
		return
	}
	if strings.Contains(req.Username, "@") {
		writeError(w, r, fmt.Errorf("%w: username must not contain @", library.ErrInvalidInput))
		return
	}
	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashed,
	}
	if err := h.Users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			logger.Warn("[Register] 用户名或邮箱已存在",
				logger.String("username", req.Username),
				logger.String("email", req.Email))
			writeMessage(w, http.StatusConflict, "username or email already exists")
			return
		}
		writeError(w, r, err)
		return
	}

	token, err := h.Tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info("[Register] 注册成功", logger.String("username", user.Username), logger.Int64("userId", user.ID))
	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: user})
}
