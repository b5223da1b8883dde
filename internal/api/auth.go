package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"posdash/pkg/models"
)

// AuthResponse is returned by the local auth endpoints
type AuthResponse struct {
	JWT  string      `json:"jwt"`
	User models.User `json:"user"`
}

// RegisterInput holds the sign-up form
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Login exchanges an identifier (email or username) and password for a JWT.
// It never sends the current session credential.
func (c *Client) Login(ctx context.Context, identifier, password string) (*AuthResponse, error) {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}
	var resp AuthResponse
	err := c.send(ctx, request{method: http.MethodPost, path: "/api/auth/local", body: body, anonymous: true}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.JWT == "" {
		return nil, &Error{Op: "POST /api/auth/local", Message: "Login failed", Err: ErrUnauthorized}
	}
	return &resp, nil
}

// Register creates an account (username = email) and then stores the name
// fields on the new user with the freshly issued token.
func (c *Client) Register(ctx context.Context, in RegisterInput) (*AuthResponse, error) {
	body := map[string]string{
		"username": in.Email,
		"email":    in.Email,
		"password": in.Password,
	}
	var resp AuthResponse
	err := c.send(ctx, request{method: http.MethodPost, path: "/api/auth/local/register", body: body, anonymous: true}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.JWT == "" {
		return nil, &Error{Op: "POST /api/auth/local/register", Message: "Registration failed", Err: ErrUnexpectedStatus}
	}

	names := map[string]string{
		"firstName": in.FirstName,
		"lastName":  in.LastName,
	}
	path := "/api/users/" + strconv.Itoa(resp.User.ID)
	if err := c.send(ctx, request{method: http.MethodPut, path: path, body: names, token: resp.JWT}, nil); err != nil {
		return nil, err
	}
	resp.User.FirstName = in.FirstName
	resp.User.LastName = in.LastName
	return &resp, nil
}

// Me returns the user the current credential belongs to.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.send(ctx, request{method: http.MethodGet, path: "/api/users/me"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Upload sends one file to the media library and returns the stored media.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (*models.Media, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("files", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("read upload %s: %w", filename, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart body: %w", err)
	}

	var media []models.Media
	err = c.send(ctx, request{
		method:      http.MethodPost,
		path:        "/api/upload",
		rawBody:     &buf,
		contentType: writer.FormDataContentType(),
	}, &media)
	if err != nil {
		return nil, err
	}
	if len(media) == 0 {
		return nil, &Error{Op: "POST /api/upload", Message: "Upload returned no files", Err: ErrDecode}
	}
	return &media[0], nil
}
