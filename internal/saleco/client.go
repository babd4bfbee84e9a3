// Package saleco is the client for the SaleCo order service.
package saleco

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jogardn/saleco-docs/pkg/models"
	"github.com/sirupsen/logrus"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient builds a client that authenticates every call with the given
// bearer token.
func NewClient(baseURL, token string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type requestItem struct {
	ProductID   string `json:"productId"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description"`
}

type requestPayload struct {
	CustomerName      string        `json:"customerName"`
	CustomerAddress   string        `json:"customerAddress"`
	WantDate          string        `json:"wantDate"`
	RequestDetails    string        `json:"requestDetails"`
	Remark            string        `json:"remark"`
	DepartmentExpense string        `json:"departmentExpense"`
	UserName          string        `json:"userName"`
	Items             []requestItem `json:"items"`
}

// allocatedItem is one row of GET /documents/{id}.
type allocatedItem struct {
	ProductID          string `json:"product_id"`
	Description        string `json:"description"`
	ProductDescription string `json:"product_description"`
	SerialNumber       string `json:"sn_number"`
	Quantity           int    `json:"quantity"`
	Remark             string `json:"remark"`
	QualityRemark      string `json:"QcmRemark"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CreateRequest creates the order record and returns the new document id.
func (c *Client) CreateRequest(ctx context.Context, order models.OrderDocument, items []models.LineItem) (string, error) {
	payload := requestPayload{
		CustomerName:      order.CustomerName,
		CustomerAddress:   order.CustomerAddress,
		RequestDetails:    strings.Join(order.RequestDetails, ", "),
		Remark:            order.Remark,
		DepartmentExpense: order.DepartmentExpense,
		UserName:          order.CreatorLabel(),
		Items:             make([]requestItem, 0, len(items)),
	}
	if !order.WantDate.IsZero() {
		payload.WantDate = order.WantDate.Format("2006-01-02")
	}
	for _, item := range items {
		payload.Items = append(payload.Items, requestItem{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			Description: item.Description,
		})
	}

	var result struct {
		DocumentID string `json:"documentId"`
	}
	if err := c.sendJSON(ctx, http.MethodPost, "/sale-co/request", payload, &result); err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"document_id": result.DocumentID,
		"items":       len(items),
	}).Info("Request created in order service")
	return result.DocumentID, nil
}

// AllocatedItems returns the serial-level rows allocated to a document.
func (c *Client) AllocatedItems(ctx context.Context, documentID string) ([]models.LineItem, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/documents/"+url.PathEscape(documentID), nil)
	if err != nil {
		return nil, err
	}

	var rows []allocatedItem
	if err := c.do(req, &rows); err != nil {
		return nil, fmt.Errorf("failed to fetch allocated items: %w", err)
	}

	items := make([]models.LineItem, 0, len(rows))
	for _, row := range rows {
		description := row.Description
		if description == "" {
			description = row.ProductDescription
		}
		items = append(items, models.LineItem{
			ProductID:     row.ProductID,
			Description:   description,
			SerialNumber:  row.SerialNumber,
			Quantity:      row.Quantity,
			Remark:        row.Remark,
			QualityRemark: row.QualityRemark,
		})
	}

	c.logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"items":       len(items),
	}).Debug("Retrieved allocated items")
	return items, nil
}

// Upload stores a rendered PDF and returns its public URL.
func (c *Client) Upload(ctx context.Context, documentID string, data []byte, filename string) (string, error) {
	var result struct {
		PDFURL string `json:"pdfUrl"`
	}
	fields := map[string]string{"documentId": documentID}
	if err := c.sendMultipart(ctx, "/upload-pdf", "pdf", filename, data, fields, &result); err != nil {
		return "", fmt.Errorf("failed to upload pdf: %w", err)
	}
	if result.PDFURL == "" {
		return "", fmt.Errorf("upload response has no pdf url")
	}
	return result.PDFURL, nil
}

func (c *Client) CreateStoreNC(ctx context.Context, report models.NCReport) (string, error) {
	payload := struct {
		models.NCReport
		Image1 string `json:"ncImage1"`
		Image2 string `json:"ncImage2"`
	}{NCReport: report}

	var result struct {
		NewDocumentID string `json:"newDocumentId"`
	}
	if err := c.sendJSON(ctx, http.MethodPost, "/sale-co/store-nc", payload, &result); err != nil {
		return "", fmt.Errorf("failed to create NC record: %w", err)
	}
	return result.NewDocumentID, nil
}

// UploadImage attaches an NC image. kind selects the image slot.
func (c *Client) UploadImage(ctx context.Context, serialNumber, kind string, image []byte) (string, error) {
	var result struct {
		ImageURL string `json:"imageUrl"`
	}
	fields := map[string]string{"sn_number": serialNumber, "type": kind}
	if err := c.sendMultipart(ctx, "/upload-image", "image", kind+".jpg", image, fields, &result); err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return result.ImageURL, nil
}

func (c *Client) UpdateNCStatus(ctx context.Context, serialNumber, status string) error {
	payload := map[string]string{"sn_number": serialNumber, "status": status}
	if err := c.sendJSON(ctx, http.MethodPut, "/sale-co/store-nc/status", payload, nil); err != nil {
		return fmt.Errorf("failed to update NC status: %w", err)
	}
	return nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := c.newRequest(ctx, method, path, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) sendMultipart(ctx context.Context, path, fileField, filename string, data []byte, fields map[string]string, out interface{}) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile(fileField, filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write form file: %w", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("failed to write form field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to order service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var errResp errorResponse
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("order service returned error status %d: %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("order service returned error status: %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode order service response: %w", err)
	}
	return nil
}
