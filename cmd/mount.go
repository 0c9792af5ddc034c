// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/cellarfs/cellarfs/internal/block"
	"github.com/cellarfs/cellarfs/internal/cfg"
	"github.com/cellarfs/cellarfs/internal/driver"
	"github.com/cellarfs/cellarfs/internal/logger"
	"github.com/cellarfs/cellarfs/internal/storage"
)

var mountViper = viper.New()

var mountCmd = &cobra.Command{
	Use:   "mount --db PATH --mount PATH",
	Short: "Mount a cellarfs database as a FUSE filesystem",
	RunE:  runMount,
}

func init() {
	bindCommonFlags(mountCmd, mountViper)
	mountCmd.Flags().String("mount", "", "directory to mount the filesystem on")
	mountCmd.Flags().String("compress", "none", "block compression for new writes: none, lz4, or zstd")
	mountCmd.Flags().Bool("foreground", false, "accepted but has no effect: mount always stays attached to the terminal")
	mountCmd.Flags().Int("read-ahead-kb", 128, "kernel read-ahead size, in KiB")
	mountCmd.Flags().Int("auto-vacuum-idle-seconds", 0, "vacuum the database after this many idle seconds; 0 disables auto-vacuum")
	_ = mountViper.BindPFlag("mount", mountCmd.Flags().Lookup("mount"))
	_ = mountViper.BindPFlag("compress", mountCmd.Flags().Lookup("compress"))
	_ = mountViper.BindPFlag("foreground", mountCmd.Flags().Lookup("foreground"))
	_ = mountViper.BindPFlag("read-ahead-kb", mountCmd.Flags().Lookup("read-ahead-kb"))
	_ = mountViper.BindPFlag("auto-vacuum-idle-seconds", mountCmd.Flags().Lookup("auto-vacuum-idle-seconds"))
}

func loadMountConfig() (*cfg.Config, error) {
	c, err := loadConfig(mountViper)
	if err != nil {
		return nil, err
	}
	c.MountPath = mountViper.GetString("mount")
	c.Foreground = mountViper.GetBool("foreground")
	c.ReadAheadKB = mountViper.GetInt("read-ahead-kb")
	c.AutoVacuumIdleSeconds = mountViper.GetInt("auto-vacuum-idle-seconds")
	var compression cfg.Compression
	if err := compression.UnmarshalText([]byte(mountViper.GetString("compress"))); err != nil {
		return nil, err
	}
	c.Compression = compression
	if c.MountPath == "" {
		return nil, fmt.Errorf("--mount is required")
	}
	return c, nil
}

func runMount(cmd *cobra.Command, args []string) error {
	c, err := loadMountConfig()
	if err != nil {
		return err
	}

	logger.SetLogFormat(c.LogFormat)
	logger.SetLogLevel(c.LogSeverity)

	server, gateway, err := buildServer(c)
	if err != nil {
		return err
	}
	defer gateway.Close()

	mountCfg := &fuse.MountConfig{
		FSName:                  "cellarfs",
		Subtype:                 "cellarfs",
		VolumeName:              "cellarfs",
		Options:                 map[string]string{"max_readahead": fmt.Sprintf("%d", c.ReadAheadKB*1024)},
		EnableParallelDirOps:    true,
		DisableWritebackCaching: true,
		EnableReaddirplus:       true,
		ErrorLogger:             log.New(os.Stderr, "fuse: ", log.LstdFlags),
	}

	logger.Infof("mounting %s on %s", c.DBPath, c.MountPath)
	mfs, err := fuse.Mount(c.MountPath, server, mountCfg)
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Infof("received signal, unmounting %s", c.MountPath)
		if err := fuse.Unmount(c.MountPath); err != nil {
			logger.Errorf("unmount: %v", err)
		}
	}()

	return mfs.Join(context.Background())
}

// buildServer opens the database named by c and wires it into a fuse.Server,
// the shared setup both mount and mount-exec need.
func buildServer(c *cfg.Config) (fuse.Server, *storage.Gateway, error) {
	key, err := cfg.ResolveKey(c)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving key: %w", err)
	}
	gateway, err := storage.Open(c.DBPath, key)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	compression := toBlockCompression(c.Compression)
	d := driver.New(gateway, compression)
	if c.AutoVacuumIdleSeconds > 0 {
		go autoVacuum(d, gateway, time.Duration(c.AutoVacuumIdleSeconds)*time.Second)
	}
	return fuseutil.NewFileSystemServer(driver.NewServer(d)), gateway, nil
}

// autoVacuum polls d for how long it has gone without a mutating operation
// and runs VACUUM once the filesystem has been idle for at least idle. The
// limiter caps vacuum runs to at most one per idle period even if the
// filesystem stays idle far longer than that, since a VACUUM gains nothing
// by repeating against an already-compacted file.
func autoVacuum(d *driver.Driver, gateway *storage.Gateway, idle time.Duration) {
	limiter := rate.NewLimiter(rate.Every(idle), 1)
	ticker := time.NewTicker(idle / 4)
	defer ticker.Stop()
	for range ticker.C {
		if d.IdleFor() < idle || !limiter.Allow() {
			continue
		}
		logger.Infof("filesystem idle for %s, running vacuum", d.IdleFor())
		if err := gateway.Vacuum(); err != nil {
			logger.Errorf("auto-vacuum: %v", err)
		}
	}
}

func toBlockCompression(c cfg.Compression) block.Compression {
	switch c {
	case cfg.CompressionLZ4:
		return block.CompressionLZ4
	case cfg.CompressionZstd:
		return block.CompressionZstd
	default:
		return block.CompressionNone
	}
}
