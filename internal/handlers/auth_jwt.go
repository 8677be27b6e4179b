package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/config"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/repositories"
)

// MemberClaims is the token payload issued by the club platform's auth
// service. The engine trusts it; it never issues tokens itself.
type MemberClaims struct {
	FullName string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuthMiddleware authenticates requests with platform-issued bearer
// tokens and mirrors the member profile into local storage.
type JWTAuthMiddleware struct {
	config     config.JWTConfig
	memberRepo repositories.MemberRepository
}

func NewJWTAuthMiddleware(cfg config.JWTConfig, memberRepo repositories.MemberRepository) *JWTAuthMiddleware {
	return &JWTAuthMiddleware{
		config:     cfg,
		memberRepo: memberRepo,
	}
}

// AuthMiddleware returns a Gin middleware that validates the bearer token
// and sets the member identity in the request context.
func (am *JWTAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "authorization header missing",
			})
			c.Abort()
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "invalid authorization header format",
			})
			c.Abort()
			return
		}

		claims, err := am.parseToken(tokenParts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": fmt.Sprintf("invalid token: %v", err),
			})
			c.Abort()
			return
		}

		member, err := am.resolveMember(c.Request.Context(), claims)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": fmt.Sprintf("failed to resolve member: %v", err),
			})
			c.Abort()
			return
		}

		c.Set("member_id", member.ID)
		c.Set("member", member)
		c.Set("member_role", member.Role)
		c.Set("is_admin", member.IsAdmin())

		c.Next()
	}
}

// RequireAdminMiddleware rejects non-admin members. Must run after
// AuthMiddleware.
func (am *JWTAuthMiddleware) RequireAdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		isAdmin, exists := c.Get("is_admin")
		if !exists || !isAdmin.(bool) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "admin role required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (am *JWTAuthMiddleware) parseToken(tokenString string) (*MemberClaims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if am.config.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(am.config.Issuer))
	}
	if am.config.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(am.config.Audience))
	}

	claims := &MemberClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(am.config.Secret), nil
	}, parserOpts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return claims, nil
}

// resolveMember loads the member row, creating or refreshing it from the
// token claims so rosters and exports always have a profile to show.
func (am *JWTAuthMiddleware) resolveMember(ctx context.Context, claims *MemberClaims) (*models.Member, error) {
	member, err := am.memberRepo.GetByID(ctx, claims.Subject)
	if err == nil && member.FullName == claims.FullName && member.Email == claims.Email && string(member.Role) == claims.Role {
		return member, nil
	}

	projected := &models.Member{
		ID:       claims.Subject,
		FullName: claims.FullName,
		Email:    claims.Email,
		Role:     mapTokenRole(claims.Role),
	}
	if err := am.memberRepo.Upsert(ctx, nil, projected); err != nil {
		return nil, fmt.Errorf("failed to upsert member: %w", err)
	}
	return projected, nil
}

func mapTokenRole(role string) models.MemberRole {
	switch strings.ToLower(role) {
	case "admin", "administrator", "captain", "coach":
		return models.RoleAdmin
	default:
		return models.RoleMember
	}
}

// GetMemberFromContext extracts the authenticated member from the Gin context.
func GetMemberFromContext(c *gin.Context) (*models.Member, error) {
	member, exists := c.Get("member")
	if !exists {
		return nil, fmt.Errorf("member not found in context")
	}

	m, ok := member.(*models.Member)
	if !ok {
		return nil, fmt.Errorf("invalid member type in context")
	}
	return m, nil
}

// GetMemberIDFromContext extracts the member ID from the Gin context.
func GetMemberIDFromContext(c *gin.Context) (string, error) {
	memberID, exists := c.Get("member_id")
	if !exists {
		return "", fmt.Errorf("member ID not found in context")
	}

	id, ok := memberID.(string)
	if !ok {
		return "", fmt.Errorf("invalid member ID type in context")
	}
	return id, nil
}

// IsAdminFromContext reports whether the authenticated member is an admin.
func IsAdminFromContext(c *gin.Context) bool {
	isAdmin, exists := c.Get("is_admin")
	if !exists {
		return false
	}
	admin, _ := isAdmin.(bool)
	return admin
}
