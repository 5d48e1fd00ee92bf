package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/AnshRaj112/municipal-portal-backend/pkg/utils"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const (
	MaxDocumentSize = 10 << 20 // 10MB
	DocumentsFolder = "municipal-portal/documents"
	sniffLength     = 512
)

// allowedDocumentTypes are the sniffed content types accepted as supporting documents.
var allowedDocumentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
}

var errDocumentTooLarge = &utils.ValidationError{Field: "file", Message: "File must be 10MB or smaller"}

// UploadedDocument is a stored supporting document.
type UploadedDocument struct {
	URL         string `json:"url"`
	PublicID    string `json:"public_id"`
	ContentType string `json:"content_type"`
	Bytes       int    `json:"bytes"`
}

type CloudinaryService struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryService(cloudName, apiKey, apiSecret string) (*CloudinaryService, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryService{cld: cld}, nil
}

// DetectDocumentType sniffs data and reports whether it is an accepted document type.
func DetectDocumentType(data []byte) (string, bool) {
	if len(data) > sniffLength {
		data = data[:sniffLength]
	}
	ct := http.DetectContentType(data)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return ct, allowedDocumentTypes[ct]
}

// UploadDocument stores a supporting document under folder/<userID>.
func (s *CloudinaryService) UploadDocument(ctx context.Context, fileHeader *multipart.FileHeader, userID string) (*UploadedDocument, error) {
	if fileHeader.Size > MaxDocumentSize {
		return nil, errDocumentTooLarge
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(io.LimitReader(file, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(fileBytes) > MaxDocumentSize {
		return nil, errDocumentTooLarge
	}
	ct, ok := DetectDocumentType(fileBytes)
	if !ok {
		return nil, &utils.ValidationError{Field: "file", Message: "Only PDF, JPEG, PNG or WebP documents are accepted"}
	}

	result, err := s.cld.Upload.Upload(ctx, fileBytes, uploader.UploadParams{
		Folder:       DocumentsFolder + "/" + userID,
		ResourceType: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary: %s", result.Error.Message)
	}

	return &UploadedDocument{
		URL:         result.SecureURL,
		PublicID:    result.PublicID,
		ContentType: ct,
		Bytes:       result.Bytes,
	}, nil
}
