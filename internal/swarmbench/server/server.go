package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/swarmbench/swarmbench/internal/common/serve"
	"github.com/swarmbench/swarmbench/internal/swarmbench/cloudinfo"
	"github.com/swarmbench/swarmbench/internal/swarmbench/configuration"
	"github.com/swarmbench/swarmbench/internal/swarmbench/domain"
	"github.com/swarmbench/swarmbench/internal/swarmbench/eks"
)

// CloudInfoService answers AWS metadata queries backing the UI dropdowns.
type CloudInfoService interface {
	Regions(ctx context.Context) ([]string, error)
	InstanceTypes(ctx context.Context, region string) ([]cloudinfo.InstanceType, error)
	InstanceInfo(ctx context.Context, region string, instanceType string) (*cloudinfo.InstanceInfo, error)
	AMIs(ctx context.Context, region string, arch string) ([]cloudinfo.Image, error)
	OSFamily(ctx context.Context, region string, amiID string) string
}

// LoadTestCoordinator drives the cluster and run lifecycle behind the facade.
type LoadTestCoordinator interface {
	ProvisionCluster(ctx context.Context, region string, nodeType string, opts eks.CreateOptions, run domain.RunContext) error
	TeardownCluster(ctx context.Context) error
	ResetStatus(ctx context.Context) error
	StartRun(ctx context.Context, shards int) error
	Status(ctx context.Context) domain.RunStatus
	FetchResults(ctx context.Context) (string, error)
	DashboardURL(ctx context.Context) (string, error)
}

type Server struct {
	cloudInfo   CloudInfoService
	coordinator LoadTestCoordinator
	config      *configuration.SwarmbenchConfig
}

func NewServer(
	cloudInfo CloudInfoService,
	coordinator LoadTestCoordinator,
	config *configuration.SwarmbenchConfig,
) *Server {
	return &Server{
		cloudInfo:   cloudInfo,
		coordinator: coordinator,
		config:      config,
	}
}

// Handler builds the http handler with all API routes, the static UI and
// CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/aws/regions", s.handleRegions)
	mux.HandleFunc("/aws/instance-types", s.handleInstanceTypes)
	mux.HandleFunc("/aws/instance-info", s.handleInstanceInfo)
	mux.HandleFunc("/aws/amis", s.handleAMIs)
	mux.HandleFunc("/aws/os-family", s.handleOSFamily)
	mux.HandleFunc("/eks/create", s.handleCreateCluster)
	mux.HandleFunc("/eks/delete", s.handleDeleteCluster)
	mux.HandleFunc("/test/run", s.handleRunTest)
	mux.HandleFunc("/test/status", s.handleTestStatus)
	mux.HandleFunc("/test/results", s.handleTestResults)
	mux.HandleFunc("/grafana/url", s.handleGrafanaURL)

	if s.config.UIPath != "" {
		mux.Handle("/", http.FileServer(serve.CreateDirWithIndexFallback(s.config.UIPath)))
	}

	return allowCORS(mux, s.config.CorsAllowedOrigins)
}

func allowCORS(h http.Handler, corsAllowedOrigins []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && originAllowed(corsAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				preflightHandler(w)
				return
			}
		}
		h.ServeHTTP(w, r)
	})
}

func preflightHandler(w http.ResponseWriter) {
	headers := []string{"Content-Type", "Accept", "Authorization"}
	w.Header().Set("Access-Control-Allow-Headers", strings.Join(headers, ","))
	methods := []string{"GET", "HEAD", "POST", "PUT", "DELETE"}
	w.Header().Set("Access-Control-Allow-Methods", strings.Join(methods, ","))
}

func originAllowed(allowed []string, origin string) bool {
	for _, candidate := range allowed {
		if candidate == "*" || candidate == origin {
			return true
		}
	}
	return false
}
