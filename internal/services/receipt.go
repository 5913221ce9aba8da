package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"time"

	"heysheet/internal/models"
	"heysheet/internal/storage"

	"github.com/starwalkn/gotenberg-go-client/v8"
	"github.com/starwalkn/gotenberg-go-client/v8/document"
)

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.FormName}}</title></head>
<body>
<h1>{{.FormName}}</h1>
<p>Submission {{.SubmissionID}} received {{.ReceivedAt}}</p>
<table border="1" cellpadding="4" cellspacing="0">
{{range .Rows}}<tr><th align="left">{{.Label}}</th><td>{{.Value}}</td></tr>
{{end}}</table>
</body></html>`))

type receiptRow struct {
	Label string
	Value string
}

// ReceiptService renders a PDF copy of a submission through Gotenberg and
// stores it next to the submission's files.
type ReceiptService struct {
	client  *gotenberg.Client
	storage storage.StorageClient
	timeout time.Duration
}

func NewReceiptService(gotenbergURL string, timeoutStr string, storageClient storage.StorageClient) (*ReceiptService, error) {
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout: timeout,
	}

	client, err := gotenberg.NewClient(gotenbergURL, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gotenberg client: %w", err)
	}

	return &ReceiptService{
		client:  client,
		storage: storageClient,
		timeout: timeout,
	}, nil
}

// Render converts the submission to PDF, uploads it and returns the object name.
func (s *ReceiptService) Render(ctx context.Context, form *models.Form, submission *models.Submission) (string, error) {
	html, err := receiptHTML(form, submission)
	if err != nil {
		return "", err
	}

	convertCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := document.FromReader("receipt.html", bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to create document from reader: %w", err)
	}

	resp, err := s.client.Send(convertCtx, gotenberg.NewLibreOfficeRequest(doc))
	if err != nil {
		return "", fmt.Errorf("failed to convert receipt: %w", err)
	}
	defer resp.Body.Close()

	objectName := storage.ReceiptObjectName(form.ID, submission.ID)
	if _, err := s.storage.UploadFile(ctx, resp.Body, objectName, "application/pdf"); err != nil {
		return "", fmt.Errorf("failed to store receipt: %w", err)
	}
	return objectName, nil
}

func receiptHTML(form *models.Form, submission *models.Submission) ([]byte, error) {
	columns, labels := submissionColumns(form, submission.Data)
	rows := make([]receiptRow, 0, len(columns))
	for _, key := range columns {
		rows = append(rows, receiptRow{Label: labels[key], Value: cellValue(submission.Data[key])})
	}

	var buf bytes.Buffer
	err := receiptTemplate.Execute(&buf, map[string]any{
		"FormName":     form.Name,
		"SubmissionID": submission.ID,
		"ReceivedAt":   submission.CreatedAt.UTC().Format(time.RFC1123),
		"Rows":         rows,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

// submissionColumns orders data keys by the form schema, then any extra
// keys alphabetically. labels maps each key to its display label.
func submissionColumns(form *models.Form, data map[string]any) ([]string, map[string]string) {
	var columns []string
	labels := map[string]string{}
	seen := map[string]bool{}

	if fields, err := models.DecodeFields(form.Fields); err == nil {
		for _, f := range fields {
			key := f.Key()
			columns = append(columns, key)
			seen[key] = true
			labels[key] = f.DisplayLabel()
		}
	}

	var extra []string
	for key := range data {
		if !seen[key] {
			extra = append(extra, key)
			labels[key] = key
		}
	}
	sort.Strings(extra)
	return append(columns, extra...), labels
}
