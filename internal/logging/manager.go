package logging

import (
	"fmt"
	"sync"
)

var (
	globalLogger Logger
	globalMu     sync.RWMutex
)

// Manager owns the process logger and its adapters
type Manager struct {
	logger  *MultiLogger
	factory *AdapterFactory
}

// NewManager creates a new logging manager
func NewManager() *Manager {
	return &Manager{
		logger:  NewMultiLogger(),
		factory: NewAdapterFactory(),
	}
}

// Initialize builds adapters from configuration and installs them
func (m *Manager) Initialize(level string, adapterConfigs []AdapterConfig) error {
	m.logger.SetLevel(ParseLogLevel(level))

	for _, ac := range adapterConfigs {
		if !ac.Enabled {
			continue
		}
		adapter, err := m.factory.CreateAdapter(ac)
		if err != nil {
			return fmt.Errorf("failed to create adapter %s: %w", ac.Name, err)
		}
		if err := m.logger.AddAdapter(adapter); err != nil {
			return fmt.Errorf("failed to add adapter %s: %w", ac.Name, err)
		}
	}
	return nil
}

// GetLogger returns the managed logger
func (m *Manager) GetLogger() Logger { return m.logger }

// Close closes the managed logger
func (m *Manager) Close() error { return m.logger.Close() }

// InitializeLogging sets up the global logger from configuration. A default
// stdout adapter is installed when no adapters are configured.
func InitializeLogging(level string, adapterConfigs []AdapterConfig) error {
	manager := NewManager()

	if len(adapterConfigs) == 0 {
		adapterConfigs = []AdapterConfig{{
			Name:    "stdout",
			Type:    "stdout",
			Enabled: true,
			Options: map[string]interface{}{"format": "json"},
		}}
	}

	if err := manager.Initialize(level, adapterConfigs); err != nil {
		return err
	}

	globalMu.Lock()
	globalLogger = manager.GetLogger()
	globalMu.Unlock()
	return nil
}

// GetGlobalLogger returns the process-wide logger, lazily falling back to a
// stdout logger when InitializeLogging has not run.
func GetGlobalLogger() Logger {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()
	if logger != nil {
		return logger
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		_ = initFallbackLogger()
	}
	return globalLogger
}

// initFallbackLogger installs a stdout logger. Caller must hold globalMu.
func initFallbackLogger() error {
	manager := NewManager()
	if err := manager.Initialize("info", []AdapterConfig{{
		Name:    "stdout",
		Type:    "stdout",
		Enabled: true,
		Options: map[string]interface{}{"format": "json"},
	}}); err != nil {
		return err
	}
	globalLogger = manager.GetLogger()
	return nil
}

// CloseLogging closes the global logger
func CloseLogging() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		return nil
	}
	err := globalLogger.Close()
	globalLogger = nil
	return err
}
