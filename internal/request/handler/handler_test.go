package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"compliancehub/internal/policy"
	"compliancehub/internal/request/handler/mocks"
	"compliancehub/internal/request/models"
	id "compliancehub/pkg/domain"
	"compliancehub/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  http.Handler
	userID  id.UserID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	r := chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
	s.userID = id.NewUserID()
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) sampleRequest() *models.Request {
	r, err := models.NewRequest(s.userID, "F001", "Q1", []string{"certificate"}, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	return r
}

func (s *HandlerSuite) TestCreate() {
	s.Run("returns 201 with items", func() {
		created := s.sampleRequest()
		buyer := policy.Principal{UserID: s.userID, Role: id.RoleBuyer}
		s.service.EXPECT().Create(gomock.Any(), buyer, models.CreateInput{
			FactoryID: "F001", Title: "Q1", DocTypes: []string{"certificate"},
		}).Return(created, nil)

		body := `{"factoryId":"F001","title":"Q1","items":[{"docType":"certificate"}]}`
		rec := s.do(testutil.AsBuyer(httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader(body)), s.userID.String()))
		s.Require().Equal(http.StatusCreated, rec.Code)

		var got map[string]any
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&got))
		s.Equal("OPEN", got["status"])
		items := got["items"].([]any)
		s.Require().Len(items, 1)
		s.Equal("PENDING", items[0].(map[string]any)["status"])
		s.Nil(items[0].(map[string]any)["evidenceId"])
	})

	s.Run("empty items is rejected before the service", func() {
		body := `{"factoryId":"F001","title":"Q1","items":[]}`
		rec := s.do(testutil.AsBuyer(httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader(body)), s.userID.String()))
		testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, "validation_error")
	})

	s.Run("unknown fields are a bad request", func() {
		body := `{"factoryId":"F001","title":"Q1","items":[{"docType":"a"}],"priority":1}`
		rec := s.do(testutil.AsBuyer(httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader(body)), s.userID.String()))
		testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestLists() {
	s.service.EXPECT().ListByBuyer(gomock.Any(), gomock.Any()).Return([]*models.Request{s.sampleRequest()}, nil)
	rec := s.do(testutil.AsBuyer(httptest.NewRequest(http.MethodGet, "/requests", nil), s.userID.String()))
	s.Equal(http.StatusOK, rec.Code)

	s.service.EXPECT().ListByFactory(gomock.Any(), policy.Principal{UserID: s.userID, Role: id.RoleFactory, FactoryID: "F001"}).
		Return([]*models.Request{}, nil)
	rec = s.do(testutil.AsFactory(httptest.NewRequest(http.MethodGet, "/factory/requests", nil), s.userID.String(), "F001"))
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`[]`, rec.Body.String())
}

func (s *HandlerSuite) TestGet() {
	r := s.sampleRequest()
	s.service.EXPECT().GetByID(gomock.Any(), gomock.Any(), r.ID).Return(r, nil)
	rec := s.do(testutil.AsAdmin(httptest.NewRequest(http.MethodGet, "/requests/"+r.ID.String(), nil), s.userID.String()))
	s.Equal(http.StatusOK, rec.Code)

	s.service.EXPECT().GetByID(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, models.ErrNotFound)
	rec = s.do(testutil.AsAdmin(httptest.NewRequest(http.MethodGet, "/requests/"+id.NewRequestID().String(), nil), s.userID.String()))
	testutil.AssertStatusAndError(s.T(), rec, http.StatusNotFound, "not_found")

	rec = s.do(httptest.NewRequest(http.MethodGet, "/requests/"+r.ID.String(), nil))
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestFulfillItem() {
	r := s.sampleRequest()
	path := "/requests/" + r.ID.String() + "/items/" + r.Items[0].ID.String() + "/fulfill"
	evidenceID, versionID := id.NewEvidenceID(), id.NewVersionID()
	body := `{"evidenceId":"` + evidenceID.String() + `","versionId":"` + versionID.String() + `"}`

	s.Run("returns request summary and item", func() {
		item := *r.Items[0]
		s.Require().NoError(item.Fulfill(evidenceID, versionID, r.CreatedAt))
		s.service.EXPECT().FulfillItem(gomock.Any(), gomock.Any(), r.ID, r.Items[0].ID,
			models.FulfillInput{EvidenceID: evidenceID, VersionID: versionID}).
			Return(&models.FulfillResult{
				Request: models.Summary{ID: r.ID, Status: models.StatusCompleted, UpdatedAt: r.UpdatedAt},
				Item:    &item,
			}, nil)

		rec := s.do(testutil.AsFactory(httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)), s.userID.String(), "F001"))
		s.Require().Equal(http.StatusOK, rec.Code)
		var got struct {
			Request map[string]any `json:"request"`
			Item    map[string]any `json:"item"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&got))
		s.Equal("COMPLETED", got.Request["status"])
		s.Equal(evidenceID.String(), got.Item["evidenceId"])
	})

	s.Run("status mapping", func() {
		cases := map[error]int{
			models.ErrNotOwned:             http.StatusForbidden,
			models.ErrItemNotFound:         http.StatusNotFound,
			models.ErrEvidenceNotOwned:     http.StatusForbidden,
			models.ErrVersionNotFound:      http.StatusNotFound,
			models.ErrItemAlreadyFulfilled: http.StatusConflict,
		}
		for err, status := range cases {
			s.service.EXPECT().FulfillItem(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, err)
			rec := s.do(testutil.AsFactory(httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)), s.userID.String(), "F001"))
			s.Equal(status, rec.Code, err.Error())
		}
	})

	s.Run("malformed evidence id is not owned", func() {
		rec := s.do(testutil.AsFactory(httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"evidenceId":"x","versionId":"y"}`)), s.userID.String(), "F001"))
		testutil.AssertStatusAndError(s.T(), rec, http.StatusForbidden, "forbidden")
	})

	s.Run("missing version id", func() {
		rec := s.do(testutil.AsFactory(httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"evidenceId":"x"}`)), s.userID.String(), "F001"))
		testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, "validation_error")
	})
}
