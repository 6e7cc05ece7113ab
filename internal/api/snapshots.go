package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camsnap/internal/api/models"
	"github.com/smazurov/camsnap/internal/snapshot"
)

func (s *Server) registerSnapshotRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-latest-snapshot",
		Method:      http.MethodGet,
		Path:        "/api/snapshots/latest",
		Summary:     "Latest Snapshot",
		Description: "The most recently saved JPEG, served from memory",
		Tags:        []string{"snapshots"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "JPEG image",
				Content:     map[string]*huma.MediaType{"image/jpeg": {}},
			},
		},
	}, func(_ context.Context, _ *struct{}) (*models.LatestSnapshotResponse, error) {
		if s.options.Snapshots == nil {
			return nil, huma.Error404NotFound(snapshot.ErrNoSnapshot.Error())
		}
		res, data, err := s.options.Snapshots.Latest()
		if errors.Is(err, snapshot.ErrNoSnapshot) {
			return nil, huma.Error404NotFound(err.Error())
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("read latest snapshot", err)
		}
		return &models.LatestSnapshotResponse{
			ContentType:  "image/jpeg",
			LastModified: res.SavedAt,
			Path:         res.Path,
			Sequence:     res.Sequence,
			Body:         data,
		}, nil
	})
}
