package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"qsync/internal/risk/handler/mocks"
	"qsync/internal/risk/models"
	"qsync/internal/scoring"
	id "qsync/pkg/domain"
	dErrors "qsync/pkg/domain-errors"
	"qsync/pkg/requestcontext"
	"qsync/pkg/testutil"
)

func newRouter(t *testing.T) (http.Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))).Register(r)
	return r, svc
}

func TestCreateRisk(t *testing.T) {
	router, svc := newRouter(t)
	svc.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, req *models.CreateRiskRequest) (*models.RiskResponse, error) {
			assert.Equal(t, 3.0, req.Consequence.Value)
			assert.False(t, req.ResidualLikelihood.Valid)
			return &models.RiskResponse{ID: id.NewRiskID().String(), RiskScore: 12, RiskLevel: scoring.RiskHigh}, nil
		})

	rr := testutil.DoRequest(router, testutil.NewRequestWithBody(t, http.MethodPost, "/api/risks",
		`{"title":"Falls","consequence":3,"likelihood":"4","residualLikelihood":null}`))

	testutil.AssertStatus(t, rr, http.StatusCreated)
	body := rr.Body.String()
	assert.Contains(t, body, `"riskLevel":"High"`)
	assert.NotContains(t, body, "residualRiskScore")
}

func TestGetRiskNotFound(t *testing.T) {
	router, svc := newRouter(t)
	riskID := id.NewRiskID()
	svc.EXPECT().Get(gomock.Any(), riskID).Return(nil, dErrors.New(dErrors.CodeNotFound, "risk not found"))

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/risks/"+riskID.String()))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, string(dErrors.CodeNotFound))
}

func TestInvalidTransition(t *testing.T) {
	router, svc := newRouter(t)
	riskID := id.NewRiskID()
	svc.EXPECT().Transition(gomock.Any(), riskID, gomock.Any()).Return(nil,
		dErrors.WithReason(dErrors.CodePreconditionFailed, "invalid_transition", "risk cannot move from open to closed"))

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost,
		"/api/risks/"+riskID.String()+"/transition", map[string]string{"status": "closed"}))

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertJSONContains(t, rr, "reason", "invalid_transition")
}

func TestDeleteRisk(t *testing.T) {
	router, svc := newRouter(t)
	riskID := id.NewRiskID()
	svc.EXPECT().Delete(gomock.Any(), riskID).Return(nil)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodDelete, "/api/risks/"+riskID.String()))
	testutil.AssertStatus(t, rr, http.StatusNoContent)
}

func TestBadBodyNeverReachesService(t *testing.T) {
	router, _ := newRouter(t)
	rr := testutil.DoRequest(router, testutil.NewRequestWithBody(t, http.MethodPut, "/api/risks/"+id.NewRiskID().String(), `[`))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
}

func TestActingUserReachesService(t *testing.T) {
	router, svc := newRouter(t)
	riskID := id.NewRiskID()
	req := testutil.WithActor(
		testutil.NewJSONRequest(t, http.MethodPut, "/api/risks/"+riskID.String(), map[string]any{"mitigation": "bed rails"}),
		"nurse-7", "ward-3",
	)

	var actor id.UserID
	var unit string
	svc.EXPECT().Update(gomock.Any(), riskID, gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ id.RiskID, req *models.UpdateRiskRequest) (*models.RiskResponse, error) {
			actor, unit = requestcontext.Actor(ctx), requestcontext.ActorUnit(ctx)
			return &models.RiskResponse{ID: riskID.String(), Mitigation: *req.Mitigation}, nil
		})

	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "mitigation", "bed rails")
	assert.Equal(t, id.UserID("nurse-7"), actor)
	assert.Equal(t, "ward-3", unit)
}
