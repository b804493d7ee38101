package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmbench/swarmbench/internal/swarmbench/cloudinfo"
	"github.com/swarmbench/swarmbench/internal/swarmbench/configuration"
	"github.com/swarmbench/swarmbench/internal/swarmbench/domain"
	"github.com/swarmbench/swarmbench/internal/swarmbench/eks"
)

type fakeCloudInfo struct {
	regions       []string
	regionsErr    error
	instanceTypes []cloudinfo.InstanceType
	instanceInfo  *cloudinfo.InstanceInfo
	infoErr       error
	images        []cloudinfo.Image
	imagesErr     error
	family        string
}

func (f *fakeCloudInfo) Regions(ctx context.Context) ([]string, error) {
	return f.regions, f.regionsErr
}

func (f *fakeCloudInfo) InstanceTypes(ctx context.Context, region string) ([]cloudinfo.InstanceType, error) {
	return f.instanceTypes, nil
}

func (f *fakeCloudInfo) InstanceInfo(ctx context.Context, region string, instanceType string) (*cloudinfo.InstanceInfo, error) {
	return f.instanceInfo, f.infoErr
}

func (f *fakeCloudInfo) AMIs(ctx context.Context, region string, arch string) ([]cloudinfo.Image, error) {
	return f.images, f.imagesErr
}

func (f *fakeCloudInfo) OSFamily(ctx context.Context, region string, amiID string) string {
	return f.family
}

type provisionCall struct {
	region   string
	nodeType string
	opts     eks.CreateOptions
	run      domain.RunContext
}

type fakeCoordinator struct {
	provisioned  []provisionCall
	provisionErr error
	tornDown     int
	resets       int
	startedWith  []int
	startErr     error
	status       domain.RunStatus
	resultsPath  string
	resultsErr   error
	dashboardURL string
	dashboardErr error
}

func (f *fakeCoordinator) ProvisionCluster(ctx context.Context, region string, nodeType string, opts eks.CreateOptions, run domain.RunContext) error {
	f.provisioned = append(f.provisioned, provisionCall{region: region, nodeType: nodeType, opts: opts, run: run})
	return f.provisionErr
}

func (f *fakeCoordinator) TeardownCluster(ctx context.Context) error {
	f.tornDown++
	return nil
}

func (f *fakeCoordinator) ResetStatus(ctx context.Context) error {
	f.resets++
	return nil
}

func (f *fakeCoordinator) StartRun(ctx context.Context, shards int) error {
	f.startedWith = append(f.startedWith, shards)
	return f.startErr
}

func (f *fakeCoordinator) Status(ctx context.Context) domain.RunStatus {
	return f.status
}

func (f *fakeCoordinator) FetchResults(ctx context.Context) (string, error) {
	return f.resultsPath, f.resultsErr
}

func (f *fakeCoordinator) DashboardURL(ctx context.Context) (string, error) {
	return f.dashboardURL, f.dashboardErr
}

func setupServer(cloudInfo *fakeCloudInfo, coordinator *fakeCoordinator) http.Handler {
	config := &configuration.SwarmbenchConfig{
		CorsAllowedOrigins: []string{"*"},
	}
	return NewServer(cloudInfo, coordinator, config).Handler()
}

func doRequest(t *testing.T, handler http.Handler, method string, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var request *http.Request
	if body != "" {
		request = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		request = httptest.NewRequest(method, target, nil)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestRegions_ShouldReturnRegionList(t *testing.T) {
	handler := setupServer(&fakeCloudInfo{regions: []string{"eu-west-1", "us-east-1"}}, &fakeCoordinator{})

	response := doRequest(t, handler, http.MethodGet, "/aws/regions", "")

	require.Equal(t, http.StatusOK, response.Code)
	var regions []string
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &regions))
	assert.Equal(t, []string{"eu-west-1", "us-east-1"}, regions)
}

func TestRegions_ShouldDegradeToEmptyListOnFailure(t *testing.T) {
	handler := setupServer(&fakeCloudInfo{regionsErr: errors.New("credentials missing")}, &fakeCoordinator{})

	response := doRequest(t, handler, http.MethodGet, "/aws/regions", "")

	require.Equal(t, http.StatusOK, response.Code)
	assert.JSONEq(t, "[]", response.Body.String())
}

func TestInstanceTypes_ShouldRejectMissingRegion(t *testing.T) {
	handler := setupServer(&fakeCloudInfo{}, &fakeCoordinator{})

	response := doRequest(t, handler, http.MethodGet, "/aws/instance-types", "")

	assert.Equal(t, http.StatusBadRequest, response.Code)
}

func TestInstanceInfo_ShouldReturn404WhenLookupFails(t *testing.T) {
	handler := setupServer(&fakeCloudInfo{infoErr: errors.New("no such type")}, &fakeCoordinator{})

	response := doRequest(t, handler, http.MethodGet, "/aws/instance-info?region=eu-west-1&instance_type=t9.mega", "")

	assert.Equal(t, http.StatusNotFound, response.Code)
	assert.Contains(t, response.Body.String(), "Instance type not found")
}

func TestInstanceInfo_ShouldReturnDetails(t *testing.T) {
	info := &cloudinfo.InstanceInfo{InstanceType: "t3.large", VCpus: 2, MemoryGiB: 8, Arch: "x86_64"}
	handler := setupServer(&fakeCloudInfo{instanceInfo: info}, &fakeCoordinator{})

	response := doRequest(t, handler, http.MethodGet, "/aws/instance-info?region=eu-west-1&instance_type=t3.large", "")

	require.Equal(t, http.StatusOK, response.Code)
	assert.Contains(t, response.Body.String(), "t3.large")
}

func TestAMIs_ShouldDegradeToEmptyListOnFailure(t *testing.T) {
	handler := setupServer(&fakeCloudInfo{imagesErr: errors.New("throttled")}, &fakeCoordinator{})

	response := doRequest(t, handler, http.MethodGet, "/aws/amis?region=eu-west-1", "")

	require.Equal(t, http.StatusOK, response.Code)
	assert.JSONEq(t, "[]", response.Body.String())
}

func TestOSFamily_ShouldReturnDetectedFamily(t *testing.T) {
	handler := setupServer(&fakeCloudInfo{family: cloudinfo.OSFamilyAmazonLinux2023}, &fakeCoordinator{})

	response := doRequest(t, handler, http.MethodGet, "/aws/os-family?region=eu-west-1&ami_id=ami-123", "")

	require.Equal(t, http.StatusOK, response.Code)
	assert.JSONEq(t, `{"family":"AmazonLinux2023"}`, response.Body.String())
}

func TestCreateCluster_ShouldProvisionWithRunContext(t *testing.T) {
	coordinator := &fakeCoordinator{}
	handler := setupServer(&fakeCloudInfo{}, coordinator)

	body := `{
		"AWS_REGION": "eu-west-1",
		"NODE_INSTANCE_TYPE": "t3.large",
		"TESTPLAN_REPO": "https://example.com/testplans.git",
		"MAX_SHARDS": 3,
		"THREADS": 50,
		"LOOP_COUNT": 10,
		"TARGET_BASE_URL": "https://target.example.com"
	}`
	response := doRequest(t, handler, http.MethodPost, "/eks/create", body)

	require.Equal(t, http.StatusOK, response.Code)
	assert.Contains(t, response.Body.String(), "Cluster creation started")
	require.Len(t, coordinator.provisioned, 1)
	call := coordinator.provisioned[0]
	assert.Equal(t, "eu-west-1", call.region)
	assert.Equal(t, "t3.large", call.nodeType)
	assert.Equal(t, 3, call.run.MaxShards)
	assert.Equal(t, 50, call.run.Threads)
	assert.Equal(t, 8080, call.run.HTTPPort)
	assert.Equal(t, 50000, call.run.RMIPort)
}

func TestCreateCluster_ShouldRejectMissingRegionOrInstanceType(t *testing.T) {
	coordinator := &fakeCoordinator{}
	handler := setupServer(&fakeCloudInfo{}, coordinator)

	response := doRequest(t, handler, http.MethodPost, "/eks/create", `{"AWS_REGION": "eu-west-1"}`)

	assert.Equal(t, http.StatusBadRequest, response.Code)
	assert.Contains(t, response.Body.String(), "AWS_REGION and NODE_INSTANCE_TYPE are required")
	assert.Empty(t, coordinator.provisioned)
}

func TestCreateCluster_ShouldDefaultRunParameters(t *testing.T) {
	coordinator := &fakeCoordinator{}
	handler := setupServer(&fakeCloudInfo{}, coordinator)

	body := `{"AWS_REGION": "eu-west-1", "NODE_INSTANCE_TYPE": "t3.large"}`
	response := doRequest(t, handler, http.MethodPost, "/eks/create", body)

	require.Equal(t, http.StatusOK, response.Code)
	require.Len(t, coordinator.provisioned, 1)
	run := coordinator.provisioned[0].run
	assert.Equal(t, 1, run.MaxShards)
	assert.Equal(t, 1, run.Threads)
	assert.Equal(t, 1, run.LoopCount)
}

func TestCreateCluster_ShouldReturn500WithRawMessageOnFailure(t *testing.T) {
	coordinator := &fakeCoordinator{provisionErr: errors.New("eksctl exited with code 1")}
	handler := setupServer(&fakeCloudInfo{}, coordinator)

	body := `{"AWS_REGION": "eu-west-1", "NODE_INSTANCE_TYPE": "t3.large"}`
	response := doRequest(t, handler, http.MethodPost, "/eks/create", body)

	assert.Equal(t, http.StatusInternalServerError, response.Code)
	assert.Contains(t, response.Body.String(), "eksctl exited with code 1")
}

func TestCreateCluster_ShouldRejectGet(t *testing.T) {
	handler := setupServer(&fakeCloudInfo{}, &fakeCoordinator{})

	response := doRequest(t, handler, http.MethodGet, "/eks/create", "")

	assert.Equal(t, http.StatusMethodNotAllowed, response.Code)
}

func TestDeleteCluster_ShouldTriggerTeardown(t *testing.T) {
	coordinator := &fakeCoordinator{}
	handler := setupServer(&fakeCloudInfo{}, coordinator)

	response := doRequest(t, handler, http.MethodPost, "/eks/delete", "{}")

	require.Equal(t, http.StatusOK, response.Code)
	assert.Contains(t, response.Body.String(), "Deletion triggered")
	assert.Equal(t, 1, coordinator.tornDown)
}

func TestRunTest_ShouldResetStatusBeforeStarting(t *testing.T) {
	coordinator := &fakeCoordinator{}
	handler := setupServer(&fakeCloudInfo{}, coordinator)

	response := doRequest(t, handler, http.MethodPost, "/test/run", `{"MAX_SHARDS": 4}`)

	require.Equal(t, http.StatusOK, response.Code)
	assert.Contains(t, response.Body.String(), "Test started with 4 shard(s)")
	assert.Equal(t, 1, coordinator.resets)
	assert.Equal(t, []int{4}, coordinator.startedWith)
}

func TestRunTest_ShouldDefaultToOneShard(t *testing.T) {
	coordinator := &fakeCoordinator{}
	handler := setupServer(&fakeCloudInfo{}, coordinator)

	response := doRequest(t, handler, http.MethodPost, "/test/run", "{}")

	require.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, []int{1}, coordinator.startedWith)
}

func TestRunTest_ShouldSurfaceStartFailure(t *testing.T) {
	coordinator := &fakeCoordinator{startErr: errors.New("controller pod not found")}
	handler := setupServer(&fakeCloudInfo{}, coordinator)

	response := doRequest(t, handler, http.MethodPost, "/test/run", `{"MAX_SHARDS": 2}`)

	assert.Equal(t, http.StatusInternalServerError, response.Code)
	assert.Contains(t, response.Body.String(), "controller pod not found")
}

func TestTestStatus_ShouldReturnCurrentStatus(t *testing.T) {
	handler := setupServer(&fakeCloudInfo{}, &fakeCoordinator{status: domain.RunStatusFinished})

	response := doRequest(t, handler, http.MethodGet, "/test/status", "")

	require.Equal(t, http.StatusOK, response.Code)
	assert.JSONEq(t, `{"status":"FINISHED"}`, response.Body.String())
}

func TestTestResults_ShouldServeArtifactAsAttachment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.jtl")
	require.NoError(t, os.WriteFile(path, []byte("timeStamp,elapsed\n"), 0o644))
	handler := setupServer(&fakeCloudInfo{}, &fakeCoordinator{resultsPath: path})

	response := doRequest(t, handler, http.MethodGet, "/test/results", "")

	require.Equal(t, http.StatusOK, response.Code)
	assert.Contains(t, response.Header().Get("Content-Disposition"), `filename="results.jtl"`)
	assert.Contains(t, response.Body.String(), "timeStamp,elapsed")
}

func TestTestResults_ShouldReturn500WhenNoArtifact(t *testing.T) {
	coordinator := &fakeCoordinator{resultsErr: errors.New("no result artifact found on controller pod, the run may still be in progress")}
	handler := setupServer(&fakeCloudInfo{}, coordinator)

	response := doRequest(t, handler, http.MethodGet, "/test/results", "")

	assert.Equal(t, http.StatusInternalServerError, response.Code)
	assert.Contains(t, response.Body.String(), "no result artifact")
}

func TestGrafanaURL_ShouldReturnDashboardAddress(t *testing.T) {
	handler := setupServer(&fakeCloudInfo{}, &fakeCoordinator{dashboardURL: "http://lb.example.com:3000/d/jmeter-dashboard"})

	response := doRequest(t, handler, http.MethodGet, "/grafana/url", "")

	require.Equal(t, http.StatusOK, response.Code)
	assert.JSONEq(t, `{"url":"http://lb.example.com:3000/d/jmeter-dashboard"}`, response.Body.String())
}

func TestGrafanaURL_ShouldReturn500WhenNotReady(t *testing.T) {
	handler := setupServer(&fakeCloudInfo{}, &fakeCoordinator{dashboardErr: errors.New("grafana not ready yet")})

	response := doRequest(t, handler, http.MethodGet, "/grafana/url", "")

	assert.Equal(t, http.StatusInternalServerError, response.Code)
	assert.Contains(t, response.Body.String(), "grafana not ready yet")
}

func TestCORS_ShouldAllowConfiguredOrigin(t *testing.T) {
	handler := setupServer(&fakeCloudInfo{regions: []string{"eu-west-1"}}, &fakeCoordinator{})

	request := httptest.NewRequest(http.MethodGet, "/aws/regions", nil)
	request.Header.Set("Origin", "http://localhost:5173")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, "http://localhost:5173", recorder.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_ShouldAnswerPreflight(t *testing.T) {
	handler := setupServer(&fakeCloudInfo{}, &fakeCoordinator{})

	request := httptest.NewRequest(http.MethodOptions, "/eks/create", nil)
	request.Header.Set("Origin", "http://localhost:5173")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Contains(t, recorder.Header().Get("Access-Control-Allow-Methods"), "POST")
}
