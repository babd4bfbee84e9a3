package document

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jogardn/saleco-docs/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSlots(t *testing.T, form *fakeForm) (*SlotRenderer, *Fill) {
	t.Helper()
	layout := DefaultLayout()
	logger := testLogger()
	fill := NewFill(testContext(t, form), NewFieldMap(layout.FieldMap), logger)
	return NewSlotRenderer(layout, nil, logger), fill
}

func makeItems(n int) []models.LineItem {
	items := make([]models.LineItem, n)
	for i := range items {
		items[i] = models.LineItem{
			ProductID:     fmt.Sprintf("P%02d", i+1),
			Description:   "Pump",
			SerialNumber:  fmt.Sprintf("SN-%d", i+1),
			Remark:        "ok",
			QualityRemark: "passed",
		}
	}
	return items
}

func TestRenderItems_WritesAtMostCapacityRows(t *testing.T) {
	for n := 0; n <= 8; n++ {
		t.Run(fmt.Sprintf("%d items", n), func(t *testing.T) {
			form := newFakeForm()
			slots, fill := newTestSlots(t, form)

			rows := slots.RenderItems(makeItems(n), fill)

			want := min(n, 5)
			assert.Equal(t, want, rows)
			assert.Len(t, form.writes, want*5)
			assert.NoError(t, fill.Report().Err())
			for i := 0; i < 8; i++ {
				_, written := form.writes[fmt.Sprintf("productid%d", i+1)]
				assert.Equal(t, i < want, written, "productid%d", i+1)
			}
		})
	}
}

func TestRenderItems_SevenItemsDropsTwo(t *testing.T) {
	form := newFakeForm()
	slots, fill := newTestSlots(t, form)

	rows := slots.RenderItems(makeItems(7), fill)

	assert.Equal(t, 5, rows)
	assert.Equal(t, 5, fill.Report().RowsRendered)
	assert.Equal(t, 2, fill.Report().ItemsDropped)
	assert.NoError(t, fill.Report().Err())
	assert.NotContains(t, form.writes, "serialnumber6")
	assert.NotContains(t, form.writes, "serialnumber7")
	assert.Equal(t, "SN-5", form.writes["serialnumber5"].Value)
}

func TestRenderItems_RowNumbers(t *testing.T) {
	form := newFakeForm()
	slots, fill := newTestSlots(t, form)

	slots.RenderItems(makeItems(5), fill)

	for i, field := range []string{"fill_25", "fill_29", "fill_33", "fill_37", "fill_41"} {
		require.Contains(t, form.writes, field)
		assert.Equal(t, fmt.Sprint(i+1), form.writes[field].Value)
		assert.Equal(t, 10.0, form.writes[field].Opts.FontSize)
	}
}

func TestRenderItems_LabelLayout(t *testing.T) {
	form := newFakeForm()
	slots, fill := newTestSlots(t, form)

	items := []models.LineItem{
		{ProductID: "A1", Description: "Pump"},
		{ProductID: "DW-2000-STAINLESS", Description: "Dishwasher unit, refurbished"},
	}
	slots.RenderItems(items, fill)

	short := form.writes["productid1"]
	assert.Equal(t, "A1 - Pump", short.Value)
	assert.True(t, short.Opts.Multiline)
	assert.Equal(t, 8.0, short.Opts.FontSize)

	long := form.writes["productid2"]
	assert.Equal(t, "DW-2000-STAINLESS\u2029Dishwasher unit, refurbished", long.Value)
	assert.Equal(t, 7.0, long.Opts.FontSize)
}

func TestRenderItems_MultilineFallback(t *testing.T) {
	form := newFakeForm()
	form.rejectMultiline["productid1"] = true
	slots, fill := newTestSlots(t, form)

	slots.RenderItems(makeItems(1), fill)

	write := form.writes["productid1"]
	assert.False(t, write.Opts.Multiline)
	assert.Equal(t, 8.0, write.Opts.FontSize)
	assert.NoError(t, fill.Report().Err())
	assert.Contains(t, fill.Report().Written(), "productid1")
}

func TestRenderItems_FailedFieldIsIsolated(t *testing.T) {
	form := newFakeForm()
	form.fail["serialnumber2"] = errors.New("broken widget")
	form.fail["productid4"] = errors.New("broken widget")
	slots, fill := newTestSlots(t, form)

	rows := slots.RenderItems(makeItems(5), fill)

	assert.Equal(t, 5, rows)
	assert.Contains(t, form.writes, "remark2")
	assert.Contains(t, form.writes, "qcmremark2")
	assert.Contains(t, form.writes, "serialnumber3")
	assert.Contains(t, form.writes, "serialnumber4")

	failures := fill.Report().Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "serialnumber2", failures[0].Field)
	assert.Equal(t, 2, failures[0].Row)
	assert.Equal(t, "productid4", failures[1].Field)
	assert.Equal(t, 4, failures[1].Row)
	assert.Error(t, fill.Report().Err())
}

func TestRenderItems_Defaults(t *testing.T) {
	form := newFakeForm()
	slots, fill := newTestSlots(t, form)

	slots.RenderItems([]models.LineItem{{ProductID: "X9"}}, fill)

	assert.Equal(t, "X9", form.writes["productid1"].Value)
	assert.Equal(t, "N/A", form.writes["serialnumber1"].Value)
	assert.Equal(t, "N/A", form.writes["remark1"].Value)
	assert.Equal(t, "-", form.writes["qcmremark1"].Value)
}

func TestProductLabel(t *testing.T) {
	tests := []struct {
		name        string
		id, desc    string
		want        string
		paragraphed bool
	}{
		{"short pair", "A1", "Pump", "A1 - Pump", false},
		{"description over 15", "A1", "Sixteen chars!!!", "", true},
		{"combined over 25", "ABCDEFGHIJKLMN", "Short descr.", "", true},
		{"combined exactly 25", "ABCDEFGHIJKLMN", "Short desc.", "ABCDEFGHIJKLMN - Short desc.", false},
		{"no description", "A1", "", "A1", false},
		{"no identifier", "", "Pump", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProductLabel(tt.id, tt.desc)
			if tt.paragraphed {
				assert.Equal(t, tt.id+"\u2029"+tt.desc, got)
				return
			}
			assert.Equal(t, tt.want, got)
			assert.False(t, strings.ContainsRune(got, '\u2029'))
		})
	}
}
