// Package sheets appends accepted submissions to a connected Google Sheet.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

type Client struct {
	service *gsheets.Service
}

func NewClient(ctx context.Context, credentialsPath string) (*Client, error) {
	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	service, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Client{service: service}, nil
}

// AppendRow adds values as a new row after the last row of sheetName.
// An empty sheetName targets the first sheet.
func (c *Client) AppendRow(ctx context.Context, spreadsheetID, sheetName string, values []any) error {
	target := "A1"
	if sheetName != "" {
		target = fmt.Sprintf("'%s'!A1", sheetName)
	}
	_, err := c.service.Spreadsheets.Values.
		Append(spreadsheetID, target, &gsheets.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row to spreadsheet %s: %w", spreadsheetID, err)
	}
	return nil
}
