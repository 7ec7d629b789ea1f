package core

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, codec *TokenCodec, revoked RevocationList, authService AuthService, accountRepo AccountRepository, studentRepo StudentRepository, redisClient *redis.Client) *gin.Engine {
	startedAt := time.Now()
	r := gin.Default()

	// Global middleware: origin/CORS -> bearer auth (advisory; guards decide per route)
	r.Use(OriginRefererMiddleware(cfg))
	r.Use(BearerAuthMiddleware(codec, revoked))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	adminOnly := RequireRole(accountRepo, RoleAdmin)
	anyRole := RequireRole(accountRepo, RoleUser, RoleAdmin)

	account := r.Group("/account")
	{
		account.POST("/login", func(c *gin.Context) {
			var req struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}

			acct, err := authService.Authenticate(req.Username, req.Password)
			if err != nil {
				if errors.Is(err, ErrInvalidCredentials) {
					respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to verify credentials")
				return
			}

			token, err := codec.Issue(acct.Username)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to issue token")
				return
			}

			c.JSON(http.StatusOK, gin.H{
				"token": token,
				"role":  acct.Role,
				"email": acct.Email,
				"id":    acct.ID,
			})
		})

		// Logout is unconditionally idempotent: a missing or malformed header
		// means there is nothing to revoke, which is still a successful logout.
		account.POST("/logout", func(c *gin.Context) {
			token, ok := ExtractBearerToken(c.GetHeader("Authorization"))
			if !ok {
				c.JSON(http.StatusOK, gin.H{"message": "logged out"})
				return
			}

			// Keep the entry only as long as the token could still be valid.
			expiresAt := time.Now().Add(codec.TTL())
			if claims, err := codec.Decode(token); err == nil {
				expiresAt = claims.ExpiresAt
			}
			if err := revoked.Revoke(c.Request.Context(), token, expiresAt); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to revoke token")
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "logged out"})
		})

		account.POST("/save", func(c *gin.Context) {
			var req struct {
				Username string `json:"username"`
				Password string `json:"password"`
				Email    string `json:"email"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			req.Username = strings.TrimSpace(req.Username)
			req.Email = strings.TrimSpace(req.Email)
			if req.Username == "" || req.Password == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "username and password are required")
				return
			}

			hash, err := HashPassword(req.Password)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to hash password")
				return
			}
			role := RoleForUsername(req.Username)

			ctx := c.Request.Context()
			id, err := accountRepo.Create(ctx, req.Username, hash, req.Email, role)
			if err != nil {
				// naive duplicate detection
				if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
					respondError(c, http.StatusConflict, "CONFLICT", "username already exists")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create account")
				return
			}

			c.JSON(http.StatusCreated, gin.H{
				"id":       id,
				"username": req.Username,
				"email":    req.Email,
				"role":     role,
			})
		})

		account.GET("/actual", RequireAuth(), func(c *gin.Context) {
			p, _ := CurrentPrincipal(c)
			a, err := accountRepo.FindByUsername(c.Request.Context(), p.Username)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "account no longer exists")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load account")
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"id":       a.ID,
				"username": a.Username,
				"email":    a.Email,
				"role":     a.Role,
			})
		})

		account.POST("/role", anyRole, func(c *gin.Context) {
			var req struct {
				Username string `json:"username"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			a, err := accountRepo.FindByUsername(c.Request.Context(), strings.TrimSpace(req.Username))
			if err != nil {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "account not found")
				return
			}
			c.JSON(http.StatusOK, gin.H{"role": a.Role})
		})

		account.PUT("/edit", anyRole, func(c *gin.Context) {
			var req struct {
				ID       int64  `json:"id"`
				Username string `json:"username"`
				Password string `json:"password"`
				Email    string `json:"email"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			req.Username = strings.TrimSpace(req.Username)
			if req.ID <= 0 || req.Username == "" || req.Password == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "id, username and password are required")
				return
			}

			ctx := c.Request.Context()
			if _, err := accountRepo.FindByID(ctx, req.ID); err != nil {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "account not found")
				return
			}

			hash, err := HashPassword(req.Password)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to hash password")
				return
			}
			role := RoleForUsername(req.Username)
			if err := accountRepo.Update(ctx, req.ID, req.Username, hash, strings.TrimSpace(req.Email), role); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update account")
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"id":       req.ID,
				"username": req.Username,
				"email":    req.Email,
				"role":     role,
			})
		})

		account.GET("/list", adminOnly, func(c *gin.Context) {
			page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			items, total, err := accountRepo.List(c.Request.Context(), page, perPage)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch accounts")
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"items":       items,
				"page":        page,
				"per_page":    perPage,
				"total_items": total,
				"total_pages": calcTotalPages(total, perPage),
			})
		})

		account.DELETE("/delete", adminOnly, func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Query("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			if err := accountRepo.Delete(c.Request.Context(), id); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete account")
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
		})

		account.DELETE("/clear", adminOnly, func(c *gin.Context) {
			ctx := c.Request.Context()

			// The caller's own token dies with the account table.
			if token, ok := ExtractBearerToken(c.GetHeader("Authorization")); ok {
				expiresAt := time.Now().Add(codec.TTL())
				if claims, err := codec.Decode(token); err == nil {
					expiresAt = claims.ExpiresAt
				}
				_ = revoked.Revoke(ctx, token, expiresAt)
			}

			if err := accountRepo.DeleteAll(ctx); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to clear accounts")
				return
			}

			// Recreate a generic admin so the instance stays reachable.
			hash, err := HashPassword("admin")
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to hash password")
				return
			}
			if _, err := accountRepo.Create(ctx, "admin", hash, "admin@localhost", RoleAdmin); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to recreate admin")
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "cleared"})
		})
	}

	student := r.Group("/student")
	{
		student.GET("/list", anyRole, func(c *gin.Context) {
			page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			items, total, err := studentRepo.List(c.Request.Context(), page, perPage)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch students")
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"items":       items,
				"page":        page,
				"per_page":    perPage,
				"total_items": total,
				"total_pages": calcTotalPages(total, perPage),
			})
		})

		student.GET("/", anyRole, func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Query("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			s, err := studentRepo.Get(c.Request.Context(), id)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "student not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch student")
				return
			}
			c.JSON(http.StatusOK, s)
		})

		student.POST("/save", anyRole, func(c *gin.Context) {
			var req struct {
				Name        string `json:"name"`
				PhoneNumber string `json:"phone_number"`
				Email       string `json:"email"`
				Address     string `json:"address"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			req.Name = strings.TrimSpace(req.Name)
			if req.Name == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name is required")
				return
			}

			s := Student{
				Name:        req.Name,
				PhoneNumber: strings.TrimSpace(req.PhoneNumber),
				Email:       strings.TrimSpace(req.Email),
				Address:     strings.TrimSpace(req.Address),
			}
			id, err := studentRepo.Create(c.Request.Context(), s)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create student")
				return
			}
			s.ID = id
			c.JSON(http.StatusCreated, s)
		})

		student.PUT("/edit", anyRole, func(c *gin.Context) {
			var req Student
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if req.ID <= 0 || strings.TrimSpace(req.Name) == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "id and name are required")
				return
			}

			ctx := c.Request.Context()
			if _, err := studentRepo.Get(ctx, req.ID); err != nil {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "student not found")
				return
			}
			if err := studentRepo.Update(ctx, req); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update student")
				return
			}
			c.JSON(http.StatusOK, req)
		})

		student.DELETE("/delete", adminOnly, func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Query("id"), 10, 64)
			if err != nil || id <= 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			if err := studentRepo.Delete(c.Request.Context(), id); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete student")
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
		})

		student.DELETE("/clear", adminOnly, func(c *gin.Context) {
			if err := studentRepo.DeleteAll(c.Request.Context()); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to clear students")
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "cleared"})
		})

		student.POST("/import", adminOnly, func(c *gin.Context) {
			fileHeader, err := c.FormFile("file")
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "file field must contain a yaml roster")
				return
			}
			if fileHeader.Size > maxRosterImportSize {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "file too large (max 4MB)")
				return
			}
			file, err := fileHeader.Open()
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "cannot open uploaded file")
				return
			}
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, maxRosterImportSize+1024))
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to read upload")
				return
			}

			entries, err := ParseStudentRoster(data)
			if err != nil {
				respondError(c, http.StatusBadRequest, "INVALID_ROSTER", err.Error())
				return
			}

			type failedRow struct {
				RowNumber int    `json:"row_number"`
				Name      string `json:"name"`
				Reason    string `json:"reason"`
			}
			var failed []failedRow
			created := 0

			ctx := c.Request.Context()
			for i, s := range entries {
				rowNumber := i + 1
				if s.Name == "" {
					failed = append(failed, failedRow{RowNumber: rowNumber, Name: s.Name, Reason: "VALIDATION_ERROR"})
					continue
				}
				if _, err := studentRepo.Create(ctx, s); err != nil {
					failed = append(failed, failedRow{RowNumber: rowNumber, Name: s.Name, Reason: "INTERNAL_ERROR"})
					continue
				}
				created++
			}

			c.JSON(http.StatusOK, gin.H{
				"created_count": created,
				"failed_count":  len(failed),
				"failed_rows":   failed,
			})
		})

		student.GET("/export", adminOnly, func(c *gin.Context) {
			students, err := studentRepo.ListAll(c.Request.Context())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch students")
				return
			}
			data, err := BuildStudentCSV(students)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to build csv")
				return
			}
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=students-%s.csv", time.Now().Format("2006-01-02")))
			c.Data(http.StatusOK, "text/csv", data)
		})
	}

	r.GET("/system/status", adminOnly, func(c *gin.Context) {
		st, err := CollectSystemStatus(c.Request.Context(), accountRepo, studentRepo, redisClient, startedAt)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load system status")
			return
		}
		c.JSON(http.StatusOK, st)
	})

	return r
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func parsePagination(pageStr, perPageStr string) (int, int, error) {
	page := 1
	perPage := defaultPerPage
	if strings.TrimSpace(pageStr) != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p <= 0 {
			return 0, 0, errors.New("page must be a positive integer")
		}
		page = p
	}
	if strings.TrimSpace(perPageStr) != "" {
		p, err := strconv.Atoi(perPageStr)
		if err != nil || p <= 0 {
			return 0, 0, errors.New("per_page must be a positive integer")
		}
		if p > maxPerPage {
			p = maxPerPage
		}
		perPage = p
	}
	return page, perPage, nil
}

func calcTotalPages(total, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
