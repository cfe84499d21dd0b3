// Command sensor is the detect-inj CLI: one positional interface-name
// argument (spec.md §6), plus flags for the hijack-skip threshold,
// snaplen, BPF filter, and reporter sink selection. Exits nonzero with
// the candidate interface list on stderr if the interface isn't found,
// matching original_source/src/main.rs's behavior.
package main

import (
	"fmt"
	"os"

	"github.com/google/gopacket/pcap"
	"github.com/namsral/flag"
	"go.uber.org/zap"

	"github.com/survived/detect-inj/internal/capture"
	"github.com/survived/detect-inj/internal/report"
	"github.com/survived/detect-inj/internal/sensor"
)

var log *zap.SugaredLogger

func main() {
	var (
		snaplen    int
		bpfFilter  string
		skipHijack uint64
		reporter   string
	)

	flag.IntVar(&snaplen, "snaplen", 65535, "capture snapshot length in bytes")
	flag.StringVar(&bpfFilter, "filter", "tcp", "BPF filter applied to the capture handle")
	flag.Uint64Var(&skipHijack, "hijack-skip-count", 12, "packet count in DataTransfer below which the hijack detector stays armed")
	flag.StringVar(&reporter, "reporter", "console", "attack reporter sink: console, prometheus, or both")
	flag.Parse()

	zapLogger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(zapLogger)
	log = zapLogger.Sugar().Named("cmd.sensor")

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: sensor [flags] <interface>")
		os.Exit(1)
	}
	ifaceName := flag.Arg(0)

	if err := checkInterfaceExists(ifaceName); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	src, err := capture.Open(capture.Options{
		Interface: ifaceName,
		Snaplen:   int32(snaplen),
		Filter:    bpfFilter,
		Promisc:   true,
	})
	if err != nil {
		log.Fatalw("failed to open capture", "error", err)
	}
	defer src.Close()

	factory, err := reporterFactory(reporter)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	demux := sensor.NewDemultiplexer(sensor.Options{
		ReporterFactory:          factory,
		SkipHijackDetectionCount: skipHijack,
	})

	log.Infow("sensor starting", "interface", ifaceName, "filter", bpfFilter, "reporter", reporter)
	if err := demux.Run(src); err != nil {
		log.Fatalw("capture terminated", "error", err)
	}
}

// checkInterfaceExists prints the candidate interface list to stderr
// and returns an error if name isn't among pcap's known devices,
// per spec.md §6's "Exit code nonzero if the interface is not found
// (list of candidates printed to standard error)".
func checkInterfaceExists(name string) error {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return fmt.Errorf("sensor: enumerate interfaces: %w", err)
	}

	for _, d := range devices {
		if d.Name == name {
			return nil
		}
	}

	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name)
	}
	return fmt.Errorf("sensor: interface %q not found; available: %v", name, names)
}

func reporterFactory(kind string) (sensor.ReporterFactory, error) {
	switch kind {
	case "console":
		return func() report.AttackReporter { return report.NewConsoleReporter() }, nil
	case "prometheus":
		return func() report.AttackReporter { return report.NewPrometheusReporter() }, nil
	case "both":
		return func() report.AttackReporter {
			return report.NewMultiReporter(report.NewConsoleReporter(), report.NewPrometheusReporter())
		}, nil
	default:
		return nil, fmt.Errorf("sensor: unknown reporter %q (want console, prometheus, or both)", kind)
	}
}
