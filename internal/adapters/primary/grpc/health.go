package grpc

import (
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Shelq27/NMedia-DZ2/internal/core/domain"
)

// ServiceName est le nom du service dans le health check gRPC.
const ServiceName = "feed"

// FeedSubscriber est la partie de ports.FeedService utilisée par le reporter.
type FeedSubscriber interface {
	Subscribe(viewerID string, fn func(domain.Update)) string
	Unsubscribe(token string)
}

// HealthReporter expose l'état du fil via le health check standard :
// NOT_SERVING après une panne d'infrastructure (Postgres, Redis), SERVING au
// succès suivant. Les snapshots invalides d'un lecteur ne dégradent pas le service.
type HealthReporter struct {
	server *health.Server
}

func NewHealthReporter() *HealthReporter {
	server := health.NewServer()
	server.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	server.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return &HealthReporter{server: server}
}

// Register enregistre le service de health sur un serveur gRPC existant
func (h *HealthReporter) Register(grpcServer *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(grpcServer, h.server)
}

// Observe suit l'état de tous les lecteurs ("" = tous) et retourne le token d'abonnement.
func (h *HealthReporter) Observe(feed FeedSubscriber) string {
	return feed.Subscribe("", h.Report)
}

func (h *HealthReporter) Report(u domain.Update) {
	switch {
	case u.Err != nil && isDataError(u.Err):
		slog.Warn("Invalid feed data", "viewer_id", u.ViewerID, "error", u.Err)
	case u.Err != nil:
		slog.Warn("Feed health degraded", "viewer_id", u.ViewerID, "error", u.Err)
		h.server.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	case !u.State.Error && !u.State.Loading && !u.State.Refreshing:
		h.server.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	}
}

// isDataError : erreur propre aux données d'un lecteur, pas à l'infrastructure
func isDataError(err error) bool {
	return errors.Is(err, domain.ErrDuplicateID) ||
		errors.Is(err, domain.ErrNegativeCount) ||
		errors.Is(err, domain.ErrPostNotFound)
}

// Shutdown passe tous les services en NOT_SERVING
func (h *HealthReporter) Shutdown() {
	h.server.Shutdown()
}
