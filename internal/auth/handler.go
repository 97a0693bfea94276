package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"UnoArena/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
)

const (
	nonceTTL    = 5 * time.Minute
	loginPrefix = "Sign this message to authenticate with UnoArena. Nonce: "
)

var (
	ErrBadSignature      = errors.New("signature verify failed")
	ErrSignatureMismatch = errors.New("signature mismatch")
)

type GuestRequest struct {
	Username string `json:"username" binding:"required"`
}

type LoginRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Nonce     string `json:"nonce" binding:"required"`
	Username  string `json:"username"` // 可选，默认用缩写地址
}

type TokenResponse struct {
	JWT      string `json:"jwt"`
	Username string `json:"username"`
}

type Handler struct {
	issuer *Issuer
	users  UserStore
	nonces NonceStore
}

// 工厂方法：创建 handler
func NewHandler(issuer *Issuer, users UserStore, nonces NonceStore) *Handler {
	return &Handler{issuer: issuer, users: users, nonces: nonces}
}

// POST /auth/guest  body: {username}
func (h *Handler) Guest(c *gin.Context) {
	var req GuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	name, err := ValidUsername(req.Username)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.issue(c, "guest:"+name, name)
}

// GET|POST /auth/nonce
func (h *Handler) GetNonce(c *gin.Context) {
	nonce, err := generateNonce()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate nonce"})
		return
	}
	if err := h.nonces.Put(c.Request.Context(), nonce, nonceTTL); err != nil {
		utils.Log.Error("store nonce failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store nonce"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce, "message": loginPrefix + nonce})
}

func (h *Handler) PostNonce(c *gin.Context) {
	h.GetNonce(c)
}

// POST /auth/login  body: {address, signature, nonce, username?}
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	// nonce 只允许用一次
	ok, err := h.nonces.Consume(c.Request.Context(), req.Nonce)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "nonce lookup failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid nonce"})
		return
	}

	recovered, err := RecoverAddress(loginPrefix+req.Nonce, req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !strings.EqualFold(recovered, req.Address) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrSignatureMismatch.Error()})
		return
	}

	name := shortAddress(recovered)
	if req.Username != "" {
		if name, err = ValidUsername(req.Username); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	h.issue(c, recovered, name)
}

// ✓ 验证通过 → 记录用户并签发 JWT
func (h *Handler) issue(c *gin.Context, subject, username string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.users.Upsert(ctx, User{Subject: subject, Username: username, LastLogin: time.Now()}); err != nil {
		utils.Log.Warn("save user failed", "subject", subject, "err", err)
	}

	token, err := h.issuer.Issue(subject, username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt generation failed"})
		return
	}
	utils.Log.Info("login", "subject", subject, "username", username)
	c.JSON(http.StatusOK, TokenResponse{JWT: token, Username: username})
}

// RecoverAddress 按 MetaMask personal_sign 的格式恢复签名者地址
func RecoverAddress(msg, signature string) (string, error) {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	hash := crypto.Keccak256Hash([]byte(prefixed))

	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sig) != crypto.SignatureLength {
		return "", ErrBadSignature
	}
	// 修正 V 值
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pubKey, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return "", ErrBadSignature
	}
	return crypto.PubkeyToAddress(*pubKey).Hex(), nil
}

func shortAddress(addr string) string {
	a := common.HexToAddress(addr).Hex()
	return a[:6] + "…" + a[len(a)-4:]
}
