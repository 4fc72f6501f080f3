// rmxextract reads iRMX 86 volume images: it can list and print single files
// or mirror the whole tree into a host directory.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/irmxtools/irmxfs/disks"
	"github.com/irmxtools/irmxfs/file_systems/irmx86"
)

func main() {
	app := cli.App{
		Name:  "rmxextract",
		Usage: "Read and extract files from iRMX 86 volume images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "epoch",
				Usage: "date (YYYY-MM-DD) that fnode timestamps are counted from",
				Value: "1978-01-01",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "extract",
				Usage:     "Extract the whole tree into a directory",
				Action:    extractImage,
				ArgsUsage: "IMAGE  OUTPUT_DIR",
			},
			{
				Name:      "ls",
				Usage:     "List a directory",
				Action:    listDirectory,
				ArgsUsage: "IMAGE  [PATH]",
			},
			{
				Name:      "cat",
				Usage:     "Write one file's contents to stdout",
				Action:    catFile,
				ArgsUsage: "IMAGE  PATH",
			},
			{
				Name:      "info",
				Usage:     "Print the volume descriptors and statistics",
				Action:    showInfo,
				ArgsUsage: "IMAGE",
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

// mountImage opens and mounts the image named by the first positional
// argument. The caller owns the returned driver and must Unmount it.
func mountImage(ctx *cli.Context) (*irmx86.Driver, error) {
	if ctx.Args().Len() < 1 {
		return nil, fmt.Errorf("missing IMAGE argument")
	}

	epoch, err := time.Parse("2006-01-02", ctx.String("epoch"))
	if err != nil {
		return nil, fmt.Errorf("invalid --epoch value: %w", err)
	}

	file, err := os.Open(ctx.Args().Get(0))
	if err != nil {
		return nil, err
	}

	driver := irmx86.NewDriverFromStreamWithEpoch(file, epoch)
	if mountErr := driver.Mount(); mountErr != nil {
		file.Close()
		return nil, mountErr
	}
	return driver, nil
}

func extractImage(ctx *cli.Context) error {
	if ctx.Args().Len() != 2 {
		return fmt.Errorf("usage: extract IMAGE OUTPUT_DIR")
	}
	outputRoot := ctx.Args().Get(1)

	driver, err := mountImage(ctx)
	if err != nil {
		return err
	}
	defer driver.Unmount()

	walker, err := driver.Walk("/")
	if err != nil {
		return err
	}

	for walker.Next() {
		step := walker.Step()

		hostDir := filepath.Join(outputRoot, filepath.FromSlash(step.Path))
		if err := os.MkdirAll(hostDir, 0o755); err != nil {
			return err
		}

		for _, file := range step.Files {
			content, err := file.Read()
			if err != nil {
				return err
			}

			name := strings.ReplaceAll(file.Name(), " ", "_")
			hostPath := filepath.Join(hostDir, name)
			if err := os.WriteFile(hostPath, content, 0o644); err != nil {
				return err
			}
			if err := os.Chtimes(hostPath, file.AccessTime(), file.ModificationTime()); err != nil {
				return err
			}
		}
	}
	return walker.Err()
}

func listDirectory(ctx *cli.Context) error {
	driver, err := mountImage(ctx)
	if err != nil {
		return err
	}
	defer driver.Unmount()

	path := ctx.Args().Get(1)
	if path == "" {
		path = "/"
	}

	entries, err := driver.ReadDir(path)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		marker := " "
		if entry.IsDir() {
			marker = "/"
		}
		fmt.Printf("%-15s%s %8d  %s", entry.Name(), marker, entry.Size(),
			entry.ModTime().Format("2006-01-02 15:04:05"))
		for _, accessor := range entry.Stat.Accessors {
			fmt.Printf("  %s:%d", accessor, accessor.ID)
		}
		fmt.Println()
	}
	return nil
}

func catFile(ctx *cli.Context) error {
	if ctx.Args().Len() != 2 {
		return fmt.Errorf("usage: cat IMAGE PATH")
	}

	driver, err := mountImage(ctx)
	if err != nil {
		return err
	}
	defer driver.Unmount()

	content, err := driver.ReadFile(ctx.Args().Get(1))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(content)
	return err
}

func showInfo(ctx *cli.Context) error {
	driver, err := mountImage(ctx)
	if err != nil {
		return err
	}
	defer driver.Unmount()

	label := driver.ISOLabel()
	info := driver.VolumeInformation()
	stat := driver.FSStat()

	fmt.Printf("Label:        %s (structure %s, version %d)\n",
		label.Label, label.Structure, label.Version)
	fmt.Printf("Volume name:  %s\n", info.Name)
	fmt.Printf("File driver:  %d\n", info.FileDriver)
	fmt.Printf("Block size:   %d bytes\n", stat.BlockSize)
	fmt.Printf("Volume size:  %d blocks (%d free)\n", stat.TotalBlocks, stat.BlocksFree)
	fmt.Printf("Fnodes:       %d used, %d free (record size %d, table at byte %d)\n",
		stat.Files, stat.FilesFree, info.FnodeSize, info.FnodeStart)
	fmt.Printf("Root fnode:   %d\n", info.RootFnode)

	imageInfo, err := os.Stat(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	for _, geometry := range disks.FindGeometriesBySize(imageInfo.Size()) {
		fmt.Printf("Image size matches %s (%s, %d)\n",
			geometry.Name, geometry.FormFactor, geometry.FirstYearAvailable)
	}
	return nil
}
