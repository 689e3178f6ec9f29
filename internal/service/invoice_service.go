package service

import (
	"context"
	"time"

	"app/internal/billing"
	"app/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Presigner is the part of the S3 presign client the invoice service needs.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// InvoiceService lists invoice history and attaches presigned download links
// for invoices whose document is stored in the archive bucket. Invoices
// themselves are immutable and owned by the billing API; this service only
// reads.
type InvoiceService struct {
	billing billing.Client
	presign Presigner
	bucket  string
	linkTTL time.Duration
	logger  zerolog.Logger
}

// NewInvoiceService creates an InvoiceService with a scoped logger. presign
// may be nil when no archive bucket is configured; invoices are then served
// without download links.
func NewInvoiceService(client billing.Client, presign Presigner, bucket string, linkTTL time.Duration, logger zerolog.Logger) *InvoiceService {
	return &InvoiceService{
		billing: client,
		presign: presign,
		bucket:  bucket,
		linkTTL: linkTTL,
		logger:  logger.With().Str("service", "InvoiceService").Logger(),
	}
}

// List returns up to limit invoices, most recent first, with download links
// where a stored document exists. A presign failure drops the link, not the
// invoice.
func (s *InvoiceService) List(ctx context.Context, limit int) ([]model.Invoice, error) {
	invoices, err := s.billing.ListInvoices(ctx, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to fetch invoices")
		return nil, err
	}

	for i := range invoices {
		inv := &invoices[i]
		inv.Status = model.NormalizeInvoiceStatus(string(inv.Status))
		if s.presign == nil || inv.DocumentKey == "" {
			continue
		}
		req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(inv.DocumentKey),
		}, func(o *s3.PresignOptions) {
			o.Expires = s.linkTTL
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("invoice", inv.ID).Msg("Failed to presign invoice document")
			continue
		}
		inv.DocumentURL = req.URL
	}
	return invoices, nil
}
