// Package util provides common utilities for spf13/cobra CLI utilities
// that can be used for various commands within this project.
package util

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/logger"
)

// MustBindPFlag attempts to bind a specific key to a pflag (as used by cobra) and panics
// if the binding fails with a non-nil error.
func MustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

func MustBindEnv(input ...string) {
	if err := viper.BindEnv(input...); err != nil {
		panic("failed to bind env key: " + err.Error())
	}
}

// Pinger is implemented by content service clients that can report whether
// the service answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WaitUntilReady pings p with an exponential backoff until it answers or
// timeout elapses. The last ping error is returned on timeout.
func WaitUntilReady(ctx context.Context, p Pinger, timeout time.Duration, l logger.Logger) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = timeout

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := p.Ping(ctx)
		if err != nil {
			l.Info("waiting for the content service", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}, backoff.WithContext(policy, ctx))
}

func PrepareTempConfigDir(t *testing.T) string {
	_, err := os.Stat("/etc/dxa/config.yaml")
	require.ErrorIs(t, err, os.ErrNotExist, "Config file at /etc/dxa/config.yaml would disturb test result.")

	homedir := t.TempDir()
	t.Setenv("HOME", homedir)

	confdir := filepath.Join(homedir, ".dxa")
	require.NoError(t, os.Mkdir(confdir, 0750))

	return confdir
}

func PrepareTempConfigFile(t *testing.T, config string) {
	confdir := PrepareTempConfigDir(t)
	confFile, err := os.Create(filepath.Join(confdir, "config.yaml"))
	require.NoError(t, err)
	_, err = confFile.WriteString(config)
	require.NoError(t, err)
	require.NoError(t, confFile.Close())
}
