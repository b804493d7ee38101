package coordinator

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/swarmbench/swarmbench/internal/swarmbench/domain"
)

const monitorReadTimeout = 30 * time.Second

// StatusMonitor periodically samples the run status, logging transitions and
// keeping the run status metric current. HTTP status reads stay live, the
// monitor only observes.
type StatusMonitor struct {
	coordinator *Coordinator

	mutex      sync.Mutex
	lastStatus domain.RunStatus
}

func NewStatusMonitor(coordinator *Coordinator) *StatusMonitor {
	return &StatusMonitor{
		coordinator: coordinator,
		lastStatus:  domain.RunStatusUnknown,
	}
}

// Sample reads the current status once. Registered with the background task
// manager.
func (m *StatusMonitor) Sample() {
	ctx, cancel := context.WithTimeout(context.Background(), monitorReadTimeout)
	defer cancel()

	status := m.coordinator.Status(ctx)
	recordRunStatus(status)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if status != m.lastStatus {
		log.Infof("Run status changed from %s to %s", m.lastStatus, status)
		m.lastStatus = status
	}
}

// LastStatus returns the most recently sampled status.
func (m *StatusMonitor) LastStatus() domain.RunStatus {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.lastStatus
}
