package cmd

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fleetware/cardbridge/pkg/cards"
	"github.com/fleetware/cardbridge/pkg/chain"
	"github.com/fleetware/cardbridge/pkg/config"
	"github.com/fleetware/cardbridge/pkg/fleet"
	"github.com/fleetware/cardbridge/pkg/hub"
	"github.com/fleetware/cardbridge/pkg/store"
	"github.com/fleetware/cardbridge/pkg/version"
)

func (rt *runtimeState) verboseLogf() func(format string, args ...any) {
	if !rt.verbose {
		return nil
	}
	// Debug output goes to stderr so json/yaml output stays parseable.
	return func(format string, args ...any) {
		_, _ = fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

func buildHubClient(rt *runtimeState) (*hub.Client, error) {
	if rt.cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	options := []hub.Option{
		hub.WithServer(rt.cfg.Hub.Server),
		hub.WithUserAgent(version.UserAgent()),
		hub.WithTLSConfig(rt.cfg.Hub.CAFile, rt.cfg.Hub.InsecureSkipTLSVerify),
	}
	if logf := rt.verboseLogf(); logf != nil {
		options = append(options, hub.WithVerbose(logf))
	}
	return hub.New(options...)
}

func buildFleetClient(rt *runtimeState) (*fleet.Client, error) {
	if rt.cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	options := []fleet.Option{
		fleet.WithServer(rt.cfg.Fleet.Server),
		fleet.WithUserAgent(version.UserAgent()),
		fleet.WithTLSConfig(rt.cfg.Fleet.CAFile, rt.cfg.Fleet.InsecureSkipTLSVerify),
	}
	if logf := rt.verboseLogf(); logf != nil {
		options = append(options, fleet.WithVerbose(logf))
	}
	return fleet.New(options...)
}

func openStore(rt *runtimeState) (store.Store, error) {
	return store.New(rt.TokenStorage(), rt.CredentialPath())
}

func openRegistry(rt *runtimeState) (*cards.Registry, error) {
	return cards.NewRegistry(rt.RegistryPath())
}

func buildChain(rt *runtimeState, st store.Store, log *zap.SugaredLogger) (*chain.Manager, error) {
	hubClient, err := buildHubClient(rt)
	if err != nil {
		return nil, err
	}
	return chain.NewManager(hubClient, st, log), nil
}

func buildLogger(rt *runtimeState) (*zap.SugaredLogger, error) {
	if rt.verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		return log.Sugar(), nil
	}
	return zap.NewNop().Sugar(), nil
}

func deviceInfo(rt *runtimeState) hub.DeviceInfo {
	var dev config.Device
	if rt.cfg != nil {
		dev = rt.cfg.Device
	}
	info := hub.DeviceInfo{
		DeviceName:         dev.Name,
		DevicePlatform:     dev.Platform,
		DeviceModel:        dev.Model,
		OSVersion:          dev.OSVersion,
		DeviceManufacturer: dev.Manufacturer,
		ApplicationVersion: version.Version,
	}
	if info.DeviceName == "" {
		if host, err := os.Hostname(); err == nil {
			info.DeviceName = host
		}
	}
	return info
}
