package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "compliancehub/pkg/domain-errors"
)

func TestCreateEvidenceRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateEvidenceRequest
		wantErr string
	}{
		{"valid date", CreateEvidenceRequest{Name: "ISO", DocType: "cert", Expiry: "2027-01-31"}, ""},
		{"valid rfc3339", CreateEvidenceRequest{Name: "ISO", DocType: "cert", Expiry: "2027-01-31T00:00:00Z"}, ""},
		{"name too long", CreateEvidenceRequest{Name: strings.Repeat("a", 256), DocType: "cert", Expiry: "2027-01-31"}, "name is too long"},
		{"missing name", CreateEvidenceRequest{Name: "  ", DocType: "cert", Expiry: "2027-01-31"}, "name is required"},
		{"missing docType", CreateEvidenceRequest{Name: "ISO", Expiry: "2027-01-31"}, "docType is required"},
		{"missing expiry", CreateEvidenceRequest{Name: "ISO", DocType: "cert"}, "expiry is required"},
		{"bad expiry", CreateEvidenceRequest{Name: "ISO", DocType: "cert", Expiry: "31/01/2027"}, "expiry must be a date (YYYY-MM-DD or RFC 3339)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			req.Normalize()
			err := req.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				in := req.Input()
				assert.Equal(t, "2027-01-31", in.Expiry.String())
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, tt.wantErr, dErrors.MessageOf(err))
		})
	}
}

func TestAddVersionRequestKeepsOmittedFieldsNil(t *testing.T) {
	req := AddVersionRequest{}
	req.Normalize()
	require.NoError(t, req.Validate())
	in := req.Input()
	assert.Nil(t, in.Notes)
	assert.Nil(t, in.Expiry)

	notes, expiry := " renewed ", "2028-02-29"
	req = AddVersionRequest{Notes: &notes, Expiry: &expiry}
	req.Normalize()
	require.NoError(t, req.Validate())
	in = req.Input()
	require.NotNil(t, in.Notes)
	assert.Equal(t, "renewed", *in.Notes)
	require.NotNil(t, in.Expiry)
	assert.Equal(t, "2028-02-29", in.Expiry.String())

	bad := "tomorrow"
	req = AddVersionRequest{Expiry: &bad}
	req.Normalize()
	assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
}
