package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gridworks-sim/gridworks/internal/api"
	"github.com/gridworks-sim/gridworks/internal/config"
	"github.com/gridworks-sim/gridworks/internal/events"
	"github.com/gridworks-sim/gridworks/internal/factory"
	"github.com/gridworks-sim/gridworks/internal/mqtt"
	"github.com/gridworks-sim/gridworks/internal/storage/postgres"
	"github.com/gridworks-sim/gridworks/internal/version"
)

type LogLine struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func logEvent(level, event, msg string, fields map[string]interface{}) {
	line := LogLine{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Event:     event,
		Message:   msg,
		Fields:    fields,
	}
	b, _ := json.Marshal(line)
	fmt.Println(string(b))
}

// machineLookup lets the panel monitor check machine IDs against the
// live floor.
type machineLookup struct {
	engine *factory.Engine
}

func (l machineLookup) HasMachine(id int) bool {
	return l.engine.HasMachine(factory.MachineID(id))
}

func main() {
	floorPath := flag.String("floor", "configs/floor.yaml", "path to floor.yaml")
	recipesPath := flag.String("recipes", "configs/recipes.yaml", "path to recipes.yaml")
	layoutPath := flag.String("layout", "configs/layout.yaml", "path to layout.yaml")
	flag.Parse()

	hostname, _ := os.Hostname()
	logEvent("info", "system.startup", "engine starting", map[string]interface{}{
		"service":  "engined",
		"version":  version.Version,
		"hostname": hostname,
		"pid":      os.Getpid(),
	})

	floorCfg, err := config.LoadFloorConfig(*floorPath)
	if err != nil {
		logEvent("error", "system.error", "failed to load floor.yaml", map[string]interface{}{
			"path": *floorPath, "error": err.Error(),
		})
		os.Exit(1)
	}
	recipesCfg, err := config.LoadRecipesConfig(*recipesPath)
	if err != nil {
		logEvent("error", "system.error", "failed to load recipes.yaml", map[string]interface{}{
			"path": *recipesPath, "error": err.Error(),
		})
		os.Exit(1)
	}
	layoutCfg, err := config.LoadLayoutConfig(*layoutPath)
	if err != nil {
		logEvent("error", "system.error", "failed to load layout.yaml", map[string]interface{}{
			"path": *layoutPath, "error": err.Error(),
		})
		os.Exit(1)
	}

	// Postgres event log is optional: the engine runs without it.
	if pg, err := postgres.New(floorCfg.Floor.ID); err != nil {
		logEvent("warning", "system.error", "postgres unavailable, events stay in memory", map[string]interface{}{
			"error": err.Error(),
		})
		api.SetPostgresConnected(false)
	} else {
		events.SetPostgresClient(pg)
		api.SetPostgresConnected(true)
		defer pg.Close()
	}

	book := factory.BuildRecipeBook(recipesCfg)
	floor, err := factory.BuildFloor(layoutCfg, book)
	if err != nil {
		logEvent("error", "system.error", "failed to build floor from layout", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	engine := factory.NewEngine(floor, book, floorCfg.Sim.SnapThreshold)

	api.InitAuth()
	api.InitTLS()
	api.InitMetrics()
	api.InitAlerts()
	api.SetFloorName(floorCfg.Floor.Name)
	api.SetEngine(engine)
	api.SetEngineReady(true)

	// Floor bus: panels register, heartbeat, and mirror telemetry.
	busClient := mqtt.NewClient("gridworks-" + floorCfg.Floor.ID)
	registry := mqtt.NewPanelRegistry()
	monitor := mqtt.NewMonitor(registry, machineLookup{engine}, 2.0)
	bus := mqtt.NewBusSubscriber(busClient, registry, monitor, engine, floorCfg.Floor.ID)
	telemetry := mqtt.NewTelemetryPublisher(busClient, registry)

	if busClient.StartWithRetry() {
		api.SetMQTTConnected(true)
		if err := bus.Start(); err != nil {
			logEvent("error", "bus.error", "failed to subscribe to bus topics", map[string]interface{}{
				"error": err.Error(),
			})
		}
		monitor.Start(10 * time.Second)
		telemetry.Start()
		defer telemetry.Stop()
		defer monitor.Stop()
	} else {
		api.SetMQTTConnected(false)
	}

	api.StartAlertMonitor(15 * time.Second)
	api.Start(floorCfg.UIPort())

	// Auto-tick drives the simulation clock when enabled; otherwise ticks
	// come from /operator/tick or the bus command topic.
	stopTick := make(chan struct{})
	if floorCfg.Sim.AutoTick {
		interval := time.Duration(floorCfg.TickIntervalMS()) * time.Millisecond
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-stopTick:
					return
				case <-ticker.C:
					if err := engine.Step(); err != nil {
						logEvent("error", "system.error", "tick failed", map[string]interface{}{
							"error": err.Error(),
						})
					}
				}
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	close(stopTick)
	events.CloseAllSubscribers()

	logEvent("info", "system.shutdown", "engine stopping", map[string]interface{}{
		"signal": sig.String(),
	})
}
