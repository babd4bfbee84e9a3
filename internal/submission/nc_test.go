package submission

import (
	"context"
	"errors"
	"testing"

	"github.com/jogardn/saleco-docs/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNCService struct {
	calls     []string
	createErr error
	uploadErr map[string]error
	status    string
}

func (f *fakeNCService) CreateStoreNC(ctx context.Context, report models.NCReport) (string, error) {
	f.calls = append(f.calls, "create")
	return "NC-1", f.createErr
}

func (f *fakeNCService) UploadImage(ctx context.Context, serialNumber, kind string, image []byte) (string, error) {
	f.calls = append(f.calls, "upload:"+kind)
	if err := f.uploadErr[kind]; err != nil {
		return "", err
	}
	return "https://files.example.com/" + serialNumber + "/" + kind, nil
}

func (f *fakeNCService) UpdateNCStatus(ctx context.Context, serialNumber, status string) error {
	f.calls = append(f.calls, "status")
	f.status = status
	return nil
}

func TestNCWorkflowOrder(t *testing.T) {
	service := &fakeNCService{}
	workflow := NewNCWorkflow(service, testLogger())

	result, err := workflow.Submit(context.Background(), models.NCReport{
		SerialNumber: "SN-1",
		Image1:       []byte("a"),
		Image2:       []byte("b"),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"create", "upload:nc1", "upload:nc2", "status"}, service.calls)
	assert.Equal(t, NCStatusAtStore, service.status)
	assert.Equal(t, "NC-1", result.DocumentID)
	assert.Equal(t, "https://files.example.com/SN-1/nc2", result.ImageURLs["nc2"])
}

func TestNCWorkflowSkipsMissingImages(t *testing.T) {
	service := &fakeNCService{}
	workflow := NewNCWorkflow(service, testLogger())

	_, err := workflow.Submit(context.Background(), models.NCReport{SerialNumber: "SN-1", Image2: []byte("b")})

	require.NoError(t, err)
	assert.Equal(t, []string{"create", "upload:nc2", "status"}, service.calls)
}

func TestNCWorkflowContinuesAfterUploadFailure(t *testing.T) {
	service := &fakeNCService{uploadErr: map[string]error{"nc1": errors.New("too large")}}
	workflow := NewNCWorkflow(service, testLogger())

	result, err := workflow.Submit(context.Background(), models.NCReport{
		SerialNumber: "SN-1",
		Image1:       []byte("a"),
		Image2:       []byte("b"),
	})

	require.NoError(t, err)
	assert.Equal(t, "NC-1", result.DocumentID)
	assert.Equal(t, []string{"create", "upload:nc1", "upload:nc2", "status"}, service.calls)
	assert.NotContains(t, result.ImageURLs, "nc1")
	assert.Contains(t, result.ImageURLs, "nc2")

	require.Len(t, result.ImageErrors, 1)
	var persistErr *PersistenceError
	assert.ErrorAs(t, result.ImageErrors[0], &persistErr)
}

func TestNCWorkflowCreateFailure(t *testing.T) {
	service := &fakeNCService{createErr: errors.New("bad request")}
	workflow := NewNCWorkflow(service, testLogger())

	_, err := workflow.Submit(context.Background(), models.NCReport{SerialNumber: "SN-1", Image1: []byte("a")})

	assert.True(t, IsFatal(err))
	assert.Equal(t, []string{"create"}, service.calls)
}

func TestNCWorkflowRequiresSerial(t *testing.T) {
	service := &fakeNCService{}
	_, err := NewNCWorkflow(service, testLogger()).Submit(context.Background(), models.NCReport{})

	assert.Error(t, err)
	assert.Empty(t, service.calls)
}
