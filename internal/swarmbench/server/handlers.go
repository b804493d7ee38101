package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/swarmbench/swarmbench/internal/swarmbench/cloudinfo"
	"github.com/swarmbench/swarmbench/internal/swarmbench/domain"
	"github.com/swarmbench/swarmbench/internal/swarmbench/eks"
)

type createClusterRequest struct {
	Region        string `json:"AWS_REGION"`
	NodeType      string `json:"NODE_INSTANCE_TYPE"`
	NodeAMI       string `json:"NODE_AMI"`
	NodeAMIFamily string `json:"NODE_AMI_FAMILY"`
	TestplanRepo  string `json:"TESTPLAN_REPO"`
	MaxShards     int    `json:"MAX_SHARDS"`
	Threads       int    `json:"THREADS"`
	LoopCount     int    `json:"LOOP_COUNT"`
	TargetBaseURL string `json:"TARGET_BASE_URL"`
}

type runTestRequest struct {
	MaxShards int `json:"MAX_SHARDS"`
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.cloudInfo.Regions(r.Context())
	if err != nil {
		log.WithError(err).Warn("Failed to list regions")
		regions = []string{}
	}
	writeJSON(w, http.StatusOK, regions)
}

func (s *Server) handleInstanceTypes(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	if region == "" {
		writeError(w, http.StatusBadRequest, "region is required")
		return
	}
	instanceTypes, err := s.cloudInfo.InstanceTypes(r.Context(), region)
	if err != nil {
		log.WithError(err).Warnf("Failed to list instance types in %s", region)
		instanceTypes = []cloudinfo.InstanceType{}
	}
	writeJSON(w, http.StatusOK, instanceTypes)
}

func (s *Server) handleInstanceInfo(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	instanceType := r.URL.Query().Get("instance_type")
	if region == "" || instanceType == "" {
		writeError(w, http.StatusBadRequest, "region and instance_type are required")
		return
	}
	info, err := s.cloudInfo.InstanceInfo(r.Context(), region, instanceType)
	if err != nil {
		log.WithError(err).Warnf("Instance info lookup failed for %s", instanceType)
		writeError(w, http.StatusNotFound, "Instance type not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleAMIs(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	if region == "" {
		writeError(w, http.StatusBadRequest, "region is required")
		return
	}
	arch := r.URL.Query().Get("arch")
	if arch == "" {
		arch = "x86_64"
	}
	images, err := s.cloudInfo.AMIs(r.Context(), region, arch)
	if err != nil {
		log.WithError(err).Warnf("Failed to list AMIs in %s", region)
		images = []cloudinfo.Image{}
	}
	writeJSON(w, http.StatusOK, images)
}

func (s *Server) handleOSFamily(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	amiID := r.URL.Query().Get("ami_id")
	if region == "" || amiID == "" {
		writeError(w, http.StatusBadRequest, "region and ami_id are required")
		return
	}
	family := s.cloudInfo.OSFamily(r.Context(), region, amiID)
	writeJSON(w, http.StatusOK, map[string]string{"family": family})
}

func (s *Server) handleCreateCluster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var request createClusterRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if request.Region == "" || request.NodeType == "" {
		writeError(w, http.StatusBadRequest, "AWS_REGION and NODE_INSTANCE_TYPE are required")
		return
	}

	run := domain.RunContext{
		TestplanRepo:  request.TestplanRepo,
		MaxShards:     atLeastOne(request.MaxShards),
		Threads:       atLeastOne(request.Threads),
		LoopCount:     atLeastOne(request.LoopCount),
		TargetBaseURL: request.TargetBaseURL,
		HTTPPort:      8080,
		RMIPort:       50000,
	}
	opts := eks.CreateOptions{AMI: request.NodeAMI, AMIFamily: request.NodeAMIFamily}

	if err := s.coordinator.ProvisionCluster(r.Context(), request.Region, request.NodeType, opts, run); err != nil {
		log.WithError(err).Error("Cluster creation failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Cluster creation started"})
}

func (s *Server) handleDeleteCluster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.coordinator.TeardownCluster(r.Context()); err != nil {
		log.WithError(err).Error("Cluster deletion failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Deletion triggered"})
}

func (s *Server) handleRunTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var request runTestRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	shards := atLeastOne(request.MaxShards)

	if err := s.coordinator.ResetStatus(r.Context()); err != nil {
		log.WithError(err).Error("Failed to reset run status")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.coordinator.StartRun(r.Context(), shards); err != nil {
		log.WithError(err).Error("Failed to start run")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": fmt.Sprintf("Test started with %d shard(s)", shards),
	})
}

func (s *Server) handleTestStatus(w http.ResponseWriter, r *http.Request) {
	status := s.coordinator.Status(r.Context())
	writeJSON(w, http.StatusOK, map[string]domain.RunStatus{"status": status})
}

func (s *Server) handleTestResults(w http.ResponseWriter, r *http.Request) {
	path, err := s.coordinator.FetchResults(r.Context())
	if err != nil {
		log.WithError(err).Error("Failed to fetch results")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, path)
}

func (s *Server) handleGrafanaURL(w http.ResponseWriter, r *http.Request) {
	url, err := s.coordinator.DashboardURL(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("Failed to write response body")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func atLeastOne(value int) int {
	if value < 1 {
		return 1
	}
	return value
}
