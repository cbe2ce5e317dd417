package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"coursepipe/internal/config"
	"coursepipe/internal/logging"
	"coursepipe/internal/notifications"
	"coursepipe/internal/objectstore"
	"coursepipe/internal/pipeline"
	"coursepipe/internal/publish"
	"coursepipe/internal/services"
	"coursepipe/internal/steps"
	"coursepipe/internal/tasks"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	store *tasks.Store
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = services.WrapCode(services.CodeConfigInvalid, "load config", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = services.WrapCode(services.CodeConfigInvalid, "ensure directories", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger.With(logging.String(logging.FieldCorrelationID, uuid.NewString()))
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) ensureStore() (*tasks.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := tasks.Open(cfg)
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

// engine wires the state machine with the production step executors.
func (c *commandContext) engine() (*pipeline.Engine, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	store, err := c.ensureStore()
	if err != nil {
		return nil, err
	}
	registry := steps.NewRegistry(steps.NewDependencies(cfg, logger))
	return pipeline.NewEngine(cfg, store, registry, notifications.NewService(cfg), logger), nil
}

func (c *commandContext) objects(cmd *cobra.Command) (objectstore.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return objectstore.New(cmd.Context(), cfg)
}

func (c *commandContext) publisher(cmd *cobra.Command) (*publish.Publisher, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	store, err := c.ensureStore()
	if err != nil {
		return nil, err
	}
	objects, err := c.objects(cmd)
	if err != nil {
		return nil, err
	}
	return publish.NewPublisher(cfg, objects, store, notifications.NewService(cfg), logger), nil
}

func (c *commandContext) close() {
	if c.store != nil {
		c.store.Close()
		c.store = nil
	}
}

// reportError prints a failed command's error. JSON mode emits the
// structured envelope so scripts can branch on the code.
func (c *commandContext) reportError(w io.Writer, err error) {
	if c.wantJSON(w) {
		_ = encodeJSON(w, failureEnvelope(err))
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
