package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SupabaseStorage talks to the Supabase Storage REST API with the service role key
type SupabaseStorage struct {
	BaseURL    string
	ServiceKey string
	Bucket     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// supabaseError is the error body returned by the storage API
type supabaseError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// NewSupabaseStorage creates a new Supabase storage client
func NewSupabaseStorage(baseURL, serviceKey, bucket string, logger *zap.Logger) *SupabaseStorage {
	return &SupabaseStorage{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ServiceKey: serviceKey,
		Bucket:     bucket,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logger,
	}
}

// Upload stores body under key, replacing an existing object
func (s *SupabaseStorage) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(key), body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	if err := s.do(req); err != nil {
		s.Logger.Error("Supabase upload failed", zap.String("key", key), zap.Error(err))
		return "", err
	}

	s.Logger.Info("Uploaded object to Supabase", zap.String("bucket", s.Bucket), zap.String("key", key))
	return s.PublicURL(key), nil
}

// Delete removes the object under key
func (s *SupabaseStorage) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(key), nil)
	if err != nil {
		return err
	}
	if err := s.do(req); err != nil {
		s.Logger.Error("Supabase delete failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// PublicURL returns the URL of an object in a public bucket
func (s *SupabaseStorage) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.BaseURL, s.Bucket, key)
}

func (s *SupabaseStorage) objectURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.BaseURL, s.Bucket, key)
}

func (s *SupabaseStorage) do(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+s.ServiceKey)
	req.Header.Set("apikey", s.ServiceKey)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errorResp supabaseError
		if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Message == "" {
			return fmt.Errorf("storage request failed: %d %s", resp.StatusCode, string(body))
		}
		return fmt.Errorf("storage request failed: %d %s - %s", resp.StatusCode, errorResp.Error, errorResp.Message)
	}
	return nil
}
