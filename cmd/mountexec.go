package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/google/uuid"
	"github.com/jacobsa/fuse"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cellarfs/cellarfs/internal/logger"
)

var mountExecViper = viper.New()

var mountExecCmd = &cobra.Command{
	Use:   "mount-exec --db PATH --mount PATH -- CMD [ARGS...]",
	Short: "Mount a cellarfs database, run a command against it, then unmount",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMountExec,
}

func init() {
	bindCommonFlags(mountExecCmd, mountExecViper)
	mountExecCmd.Flags().String("mount", "", "directory to mount the filesystem on")
	mountExecCmd.Flags().String("compress", "none", "block compression for new writes: none, lz4, or zstd")
	_ = mountExecViper.BindPFlag("mount", mountExecCmd.Flags().Lookup("mount"))
	_ = mountExecViper.BindPFlag("compress", mountExecCmd.Flags().Lookup("compress"))
}

func runMountExec(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(mountExecViper)
	if err != nil {
		return err
	}
	c.MountPath = mountExecViper.GetString("mount")
	if c.MountPath == "" {
		return fmt.Errorf("--mount is required")
	}
	if err := c.Compression.UnmarshalText([]byte(mountExecViper.GetString("compress"))); err != nil {
		return err
	}

	logger.SetLogFormat(c.LogFormat)
	logger.SetLogLevel(c.LogSeverity)

	sessionID := uuid.NewString()
	logger.Infof("mount-exec session=%s starting, db=%s mount=%s", sessionID, c.DBPath, c.MountPath)

	server, gateway, err := buildServer(c)
	if err != nil {
		return err
	}
	defer gateway.Close()

	mountCfg := &fuse.MountConfig{
		FSName:                  "cellarfs",
		Subtype:                 "cellarfs",
		VolumeName:              "cellarfs",
		EnableParallelDirOps:    true,
		DisableWritebackCaching: true,
		EnableReaddirplus:       true,
	}

	mfs, err := fuse.Mount(c.MountPath, server, mountCfg)
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	child := exec.Command(args[0], args[1:]...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.Env = append(os.Environ(),
		"CELLARFS_DB_PATH="+c.DBPath,
		"CELLARFS_MOUNT_PATH="+c.MountPath,
	)

	runErr := child.Run()
	logger.Infof("mount-exec session=%s command finished: %v", sessionID, runErr)

	if err := fuse.Unmount(c.MountPath); err != nil {
		logger.Errorf("unmount: %v", err)
	}
	if joinErr := mfs.Join(context.Background()); joinErr != nil {
		logger.Errorf("serve: %v", joinErr)
	}

	if exitErr, ok := runErr.(*exec.ExitError); ok {
		os.Exit(exitErr.ExitCode())
	} else if runErr != nil {
		return fmt.Errorf("running command: %w", runErr)
	}
	return nil
}
