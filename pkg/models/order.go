package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// OrderDocument is the header data of a submitted request. It is immutable
// once rendered.
type OrderDocument struct {
	DocumentID        string    `json:"document_id,omitempty"`
	CustomerName      string    `json:"customer_name"`
	CustomerAddress   string    `json:"customer_address"`
	WantDate          time.Time `json:"want_date"`
	Remark            string    `json:"remark"`
	RequestDetails    []string  `json:"request_details"`
	DepartmentExpense string    `json:"department_expense"`
	CreatorName       string    `json:"creator_name"`
	CreatorDepartment string    `json:"creator_department"`
	CreatedAt         time.Time `json:"created_at"`
}

// UnmarshalJSON accepts want_date either as a plain date ("2006-01-02", as
// sent by date pickers) or as an RFC 3339 timestamp.
func (o *OrderDocument) UnmarshalJSON(data []byte) error {
	type plain OrderDocument
	aux := struct {
		*plain
		WantDate *string `json:"want_date"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.WantDate == nil || *aux.WantDate == "" {
		o.WantDate = time.Time{}
		return nil
	}
	wantDate, err := ParseWantDate(*aux.WantDate)
	if err != nil {
		return err
	}
	o.WantDate = wantDate
	return nil
}

func ParseWantDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("want_date %q is neither YYYY-MM-DD nor RFC 3339", value)
	}
	return t, nil
}

// CreatorLabel is the "<name> แผนก <department>" string the order service
// stores as the requesting user.
func (o OrderDocument) CreatorLabel() string {
	return o.CreatorName + " แผนก " + o.CreatorDepartment
}

type LineItem struct {
	ProductID     string `json:"product_id"`
	Description   string `json:"description"`
	SerialNumber  string `json:"sn_number"`
	Quantity      int    `json:"quantity"`
	Remark        string `json:"remark,omitempty"`
	QualityRemark string `json:"qcm_remark,omitempty"`
}

// RenderedDocument is the serialized, flattened artifact. URL is set once
// the artifact has been persisted.
type RenderedDocument struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Bytes      []byte    `json:"bytes"`
	URL        string    `json:"url,omitempty"`
	RenderedAt time.Time `json:"rendered_at"`
}

// NCReport is a defect report raised against a single serial.
type NCReport struct {
	SerialNumber      string `json:"sn_number"`
	UserName          string `json:"userName"`
	ProductType       string `json:"productType"`
	LotNo             string `json:"lotNo"`
	PackSize          string `json:"packSize"`
	FoundIssue        string `json:"foundIssue"`
	DefectReporter    string `json:"defectReporter"`
	InventorySource   string `json:"inventorySource"`
	IssueDetails      string `json:"issueDetails"`
	PreventiveActions string `json:"preventiveActions"`
	Image1            []byte `json:"-"`
	Image2            []byte `json:"-"`
}

type RequestResponse struct {
	Success            bool   `json:"success"`
	Message            string `json:"message"`
	DocumentID         string `json:"documentId,omitempty"`
	ArtifactURL        string `json:"pdfUrl,omitempty"`
	RenderPending      bool   `json:"renderPending"`
	PersistencePending bool   `json:"persistencePending"`
	Artifact           []byte `json:"artifact,omitempty"`
	FailedFields       int    `json:"failedFields"`
}

// RegenerationRequest asks for a document to be rendered and persisted again
// after the submission pipeline could not deliver it.
type RegenerationRequest struct {
	DocumentID  string        `json:"document_id"`
	Order       OrderDocument `json:"order"`
	Items       []LineItem    `json:"items"`
	Reason      string        `json:"reason"`
	RequestedAt time.Time     `json:"requested_at"`
}
