package instanceservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/erayguner/wbi-fleet-upgrade/internal/domain/entity"
)

// httpInstanceService talks to a generic REST-ish notebook-instance API,
// grounded on the shape of WorkbenchRestClient (list/get/upgrade/rollback/
// start/checkUpgradability/operation-get). Unlike that client, it makes a
// single attempt per call: retry/backoff policy is centralised in the
// operation tracker (spec §4.B, §9 "centralise retry loops").
type httpInstanceService struct {
	baseURL    string
	httpClient *http.Client
}

// New returns an InstanceService backed by baseURL (e.g.
// "https://notebooks.example.com/v2"). client may be nil, in which case
// http.DefaultClient is used.
func New(baseURL string, client *http.Client) InstanceService {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpInstanceService{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: client}
}

type wireInstance struct {
	Name                    string            `json:"name"`
	State                   string            `json:"state"`
	HealthState             string            `json:"healthState"`
	CurrentVersion          string            `json:"currentVersion"`
	AvailableUpgradeVersion string            `json:"availableUpgradeVersion"`
	PreviousVersion         string            `json:"previousVersion"`
	LastUpgradeAt           string            `json:"lastUpgradeAt"`
	RollbackWindowExpiresAt string            `json:"rollbackWindowExpiresAt"`
	Labels                  map[string]string `json:"labels"`
}

type wireListResponse struct {
	Instances     []wireInstance `json:"instances"`
	NextPageToken string         `json:"nextPageToken"`
}

type wireOperation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *httpInstanceService) url(path string) string {
	return s.baseURL + "/" + strings.TrimPrefix(path, "/")
}

func (s *httpInstanceService) do(ctx context.Context, method, url string, body any) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, nil, entity.NewServiceError(entity.ErrorKindUnexpected, err.Error())
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, nil, entity.NewServiceError(entity.ErrorKindUnexpected, err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, nil, entity.NewServiceError(entity.ErrorKindTransient, err.Error())
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, entity.NewServiceError(entity.ErrorKindTransient, err.Error())
	}
	return resp, payload, nil
}

// classifyStatus maps an HTTP status code onto the engine's closed error
// taxonomy, mirroring WorkbenchRestClient.RETRYABLE_STATUS_CODES for the
// transient/rate-limited boundary.
func classifyStatus(code int) entity.ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return entity.ErrorKindAuthFailed
	case code == http.StatusNotFound:
		return entity.ErrorKindNotFound
	case code == http.StatusConflict || code == http.StatusPreconditionFailed:
		return entity.ErrorKindPreconditionViolated
	case code == http.StatusTooManyRequests:
		return entity.ErrorKindRateLimited
	case code == http.StatusBadGateway || code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout || code >= 500:
		return entity.ErrorKindTransient
	default:
		return entity.ErrorKindUnexpected
	}
}

func errorFromStatus(resp *http.Response, payload []byte) error {
	kind := classifyStatus(resp.StatusCode)
	msg := fmt.Sprintf("http %d", resp.StatusCode)
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(payload, &body) == nil && body.Error.Message != "" {
		msg = body.Error.Message
	}
	return entity.NewServiceError(kind, msg)
}

func toSnapshot(w wireInstance, location string) entity.InstanceSnapshot {
	parts := strings.Split(w.Name, "/")
	short := parts[len(parts)-1]

	snap := entity.InstanceSnapshot{
		Name:                    w.Name,
		ShortName:               short,
		Location:                location,
		State:                   entity.ParseInstanceState(w.State),
		HealthState:             entity.ParseHealthState(w.HealthState),
		CurrentVersion:          w.CurrentVersion,
		AvailableUpgradeVersion: w.AvailableUpgradeVersion,
		PreviousVersion:         w.PreviousVersion,
		Labels:                  w.Labels,
	}
	if t, ok := parseRFC3339(w.LastUpgradeAt); ok {
		snap.LastUpgradeAt = &t
	}
	if t, ok := parseRFC3339(w.RollbackWindowExpiresAt); ok {
		snap.RollbackWindowExpiresAt = &t
	}
	return snap
}

func (s *httpInstanceService) List(ctx context.Context, project, location string) ([]entity.InstanceSnapshot, error) {
	parent := fmt.Sprintf("projects/%s/locations/%s", project, location)
	url := s.url(parent + "/instances")

	var out []entity.InstanceSnapshot
	pageToken := ""
	for {
		reqURL := url
		if pageToken != "" {
			reqURL += "?pageToken=" + pageToken
		}
		resp, payload, err := s.do(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, errorFromStatus(resp, payload)
		}

		var page wireListResponse
		if err := json.Unmarshal(payload, &page); err != nil {
			return nil, entity.NewServiceError(entity.ErrorKindUnexpected, err.Error())
		}
		for _, wi := range page.Instances {
			out = append(out, toSnapshot(wi, location))
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *httpInstanceService) Get(ctx context.Context, name string) (entity.InstanceSnapshot, error) {
	resp, payload, err := s.do(ctx, http.MethodGet, s.url(name), nil)
	if err != nil {
		return entity.InstanceSnapshot{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return entity.InstanceSnapshot{}, errorFromStatus(resp, payload)
	}
	var wi wireInstance
	if err := json.Unmarshal(payload, &wi); err != nil {
		return entity.InstanceSnapshot{}, entity.NewServiceError(entity.ErrorKindUnexpected, err.Error())
	}
	return toSnapshot(wi, locationFromName(wi.Name)), nil
}

func (s *httpInstanceService) mutate(ctx context.Context, verb, name string, currentState entity.InstanceState, legal map[entity.InstanceState]struct{}) (OperationHandle, error) {
	if _, ok := legal[currentState]; !ok {
		return "", entity.NewServiceError(entity.ErrorKindPreconditionViolated,
			fmt.Sprintf("%s illegal from state %s", verb, currentState))
	}

	resp, payload, err := s.do(ctx, http.MethodPost, s.url(name+":"+verb), map[string]any{})
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", errorFromStatus(resp, payload)
	}
	var wo wireOperation
	if err := json.Unmarshal(payload, &wo); err != nil || wo.Name == "" {
		return "", entity.NewServiceError(entity.ErrorKindUnexpected, "missing operation name in "+verb+" response")
	}
	return OperationHandle(wo.Name), nil
}

var startLegalStates = map[entity.InstanceState]struct{}{
	entity.StateStopped:   {},
	entity.StateSuspended: {},
}

var activeOnly = map[entity.InstanceState]struct{}{
	entity.StateActive: {},
}

func (s *httpInstanceService) Start(ctx context.Context, name string) (OperationHandle, error) {
	snap, err := s.Get(ctx, name)
	if err != nil {
		return "", err
	}
	return s.mutate(ctx, "start", name, snap.State, startLegalStates)
}

func (s *httpInstanceService) BeginUpgrade(ctx context.Context, name string) (OperationHandle, error) {
	snap, err := s.Get(ctx, name)
	if err != nil {
		return "", err
	}
	return s.mutate(ctx, "upgrade", name, snap.State, activeOnly)
}

func (s *httpInstanceService) BeginRollback(ctx context.Context, name string) (OperationHandle, error) {
	snap, err := s.Get(ctx, name)
	if err != nil {
		return "", err
	}
	return s.mutate(ctx, "rollback", name, snap.State, activeOnly)
}

func (s *httpInstanceService) GetOperation(ctx context.Context, handle OperationHandle) (OperationOutcome, error) {
	resp, payload, err := s.do(ctx, http.MethodGet, s.url(string(handle)), nil)
	if err != nil {
		return OperationOutcome{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return OperationOutcome{}, errorFromStatus(resp, payload)
	}
	var wo wireOperation
	if err := json.Unmarshal(payload, &wo); err != nil {
		return OperationOutcome{}, entity.NewServiceError(entity.ErrorKindUnexpected, err.Error())
	}
	out := OperationOutcome{Done: wo.Done}
	if wo.Done && wo.Error != nil {
		out.ErrorKind = classifyStatus(wo.Error.Code)
		out.ErrorMessage = wo.Error.Message
	}
	return out, nil
}

func (s *httpInstanceService) CheckUpgradable(ctx context.Context, name string) (UpgradabilityInfo, error) {
	resp, payload, err := s.do(ctx, http.MethodGet, s.url(name+":checkUpgradability"), nil)
	if err != nil {
		return UpgradabilityInfo{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return UpgradabilityInfo{}, errorFromStatus(resp, payload)
	}
	var body struct {
		Upgradeable   bool   `json:"upgradeable"`
		UpgradeVersion string `json:"upgradeVersion"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return UpgradabilityInfo{}, entity.NewServiceError(entity.ErrorKindUnexpected, err.Error())
	}
	return UpgradabilityInfo{Upgradable: body.Upgradeable, TargetVersion: body.UpgradeVersion}, nil
}

func locationFromName(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		if p == "locations" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}
