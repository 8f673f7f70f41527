package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/user-registry/dto"
	"github.com/legit-games/user-registry/email"
	"github.com/legit-games/user-registry/errors"
	"github.com/legit-games/user-registry/importer"
	"github.com/legit-games/user-registry/models"
)

// importField is the multipart field carrying the CSV file.
const importField = "csv"

// HandleImportUsersGin handles POST /signup/massive. The body is multipart with the CSV in
// the csv field, either as a file or as a plain value. Rows fail independently.
func (s *Server) HandleImportUsersGin(c *gin.Context) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize)
	if err := c.Request.ParseMultipartForm(maxImportSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.MessageResponse{Message: "upload too large"})
			return
		}
		badRequest(c, fmt.Sprintf("invalid multipart body: %v", err))
		return
	}
	var (
		res *importer.Result
		err error
	)
	if fh, ferr := c.FormFile(importField); ferr == nil {
		f, oerr := fh.Open()
		if oerr != nil {
			s.respondError(c, fmt.Errorf("open upload: %w", oerr))
			return
		}
		defer f.Close()
		res, err = s.importer.Import(ctx, f)
	} else if text, ok := c.GetPostForm(importField); ok {
		res, err = s.importer.Import(ctx, strings.NewReader(text))
	} else {
		badRequest(c, "multipart field \"csv\" is required")
		return
	}
	if err != nil {
		s.respondError(c, err)
		return
	}

	importRows.WithLabelValues("success").Add(float64(res.Success))
	importRows.WithLabelValues("error").Add(float64(len(res.Errors)))
	c.JSON(http.StatusOK, dto.FromImportResult(res))
}

// createImported creates the account for one imported row. Rows without a password get a
// generated one, which is mailed to the user with a welcome message.
func (s *Server) createImported(ctx context.Context, row importer.Row) error {
	password := row.Password
	generated := password == ""
	if generated {
		p, err := generatePassword()
		if err != nil {
			return err
		}
		password = p
	}
	u, err := s.createAccount(ctx, newAccount{
		Username: row.Username,
		Email:    row.Email,
		Password: password,
		Name:     models.Name{First: row.First, Middle: row.Middle, Last: row.Last},
	})
	if err != nil {
		if errors.Is(err, errors.ErrConflict) {
			return fmt.Errorf("username or email already registered: %w", errors.ErrConflict)
		}
		return err
	}
	data := email.WelcomeEmailData{To: u.Email, Username: u.Username, AppName: s.Config.Email.AppName}
	if generated {
		data.Password = password
	}
	if err := s.Email.SendWelcome(ctx, data); err != nil {
		s.Logger.ErrorContext(ctx, "failed to send welcome email", "user_id", u.ID, "error", err)
	}
	return nil
}
