// Command ext2fsck mounts an ext2 partition of a raw disk image read-write,
// runs the structural consistency passes against it, and repairs what it
// finds.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"ext2fsck/check"
	"ext2fsck/filesystem/ext2"
	"ext2fsck/image"
	"ext2fsck/partition/mbr"
)

var (
	flagImage     = flag.String("i", "", "path to the disk image to check")
	flagPrintPart = flag.Int("p", 0, "print partition N's info and exit (N is 1-based; out of range prints -1)")
	flagFix       = flag.Int("f", 0, "repair partition N (0 repairs every ext2 partition)")
	flagResolve   = flag.String("l", "", "resolve an absolute path on the mounted filesystem and print its inode number")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -i <image> [-p <partition>] [-f <partition>] [-l <path>]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	var pSet, fSet bool
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "p":
			pSet = true
		case "f":
			fSet = true
		}
	})

	if *flagImage == "" || len(*flagImage) > image.MaxPathLength {
		usage()
		os.Exit(1)
	}
	if !pSet && !fSet {
		usage()
		os.Exit(1)
	}

	img, err := image.Open(*flagImage)
	if err != nil {
		logrus.WithError(err).Fatal("could not open image")
	}
	defer img.Close()

	if pSet {
		if err := printPartitionInfo(img, *flagPrintPart); err != nil {
			logrus.WithError(err).Fatal("could not read partition table")
		}
		return
	}

	if err := runFix(img, *flagFix, *flagResolve); err != nil {
		logrus.WithError(err).Fatal("check failed")
	}
}

// printPartitionInfo prints "0x<type> <start sector> <sector count>" for
// partition index, or "-1" if no such partition exists.
func printPartitionInfo(img *image.Image, index int) error {
	p, err := img.Partition(index)
	if err != nil {
		if errors.Is(err, mbr.ErrNoSuchPartition) {
			fmt.Println("-1")
			return nil
		}
		return err
	}
	fmt.Printf("0x%02x %d %d\n", p.SysInd, p.AbsoluteStart(), p.SectorCount)
	return nil
}

// runFix repairs partition index, or every ext2 partition when index is 0.
// A non-ext2 partition requested by an explicit index is a fatal usage error.
func runFix(img *image.Image, index int, resolvePath string) error {
	if index == 0 {
		parts, err := img.Partitions()
		if err != nil {
			return err
		}
		for _, p := range parts {
			if !p.IsExt2() {
				continue
			}
			if err := fixPartition(img, p, resolvePath); err != nil {
				return err
			}
		}
		return nil
	}

	p, err := img.Partition(index)
	if err != nil {
		return err
	}
	if !p.IsExt2() {
		fmt.Println("Trying to run fsck on an invalid partition")
		os.Exit(1)
	}
	return fixPartition(img, p, resolvePath)
}

// fixPartition mounts p and either resolves resolvePath (if given) or runs
// the full repair engine against it.
func fixPartition(img *image.Image, p *mbr.Partition, resolvePath string) error {
	dev := img.Device(p)
	fs, err := ext2.Open(dev)
	if err != nil {
		return fmt.Errorf("could not mount filesystem on partition %d: %w", p.Index, err)
	}

	if resolvePath != "" {
		inum, err := fs.Resolve(resolvePath)
		if err != nil {
			return err
		}
		fmt.Printf("%d\n", inum)
		return nil
	}

	return check.NewChecker(fs, true).Run()
}
