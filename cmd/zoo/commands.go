package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/born-ml/zoo/internal/backend/cpu"
	"github.com/born-ml/zoo/internal/bert"
	"github.com/born-ml/zoo/internal/config"
	"github.com/born-ml/zoo/internal/dataset"
	"github.com/born-ml/zoo/internal/loader"
	"github.com/born-ml/zoo/internal/nn"
	"github.com/born-ml/zoo/internal/parallel"
	"github.com/born-ml/zoo/internal/server"
	"github.com/born-ml/zoo/internal/tensor"
	"github.com/born-ml/zoo/internal/zoo"
)

// oneName parses fs and returns its single positional argument.
func oneName(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s: expected one model name", fs.Name())
	}
	return fs.Arg(0), nil
}

func cmdList(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDATASET\tINPUT\tPARAMS\tTRAINABLE")
	for _, name := range zoo.Names() {
		e, err := zoo.Describe(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\t%d\t%d\n",
			e.Name, e.Dataset.Name, e.Dataset.Shape, e.NumParameters(), e.TrainableParameters())
	}
	return tw.Flush()
}

func cmdDataset(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("dataset", flag.ContinueOnError)
	name, err := oneName(fs, args)
	if err != nil {
		return err
	}
	ds, shape := zoo.GetDataset(name)
	fmt.Fprintf(out, "%s %v\n", ds, shape)
	return nil
}

func cmdSummary(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	name, err := oneName(fs, args)
	if err != nil {
		return err
	}
	e, err := zoo.Describe(name)
	if err != nil {
		return err
	}
	s, err := e.Summarize()
	if err != nil {
		return fmt.Errorf("%s: %w", e.Name, err)
	}
	fmt.Fprintf(out, "%s (%s)\n%s", e.Name, e.Dataset.Name, s)
	return nil
}

// cmdProbe builds a model, optionally loads weights, and runs one forward
// pass on a random batch of its dataset's shape.
func cmdProbe(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "YAML configuration supplying batch, workers and weights")
	batch := fs.Int("batch", 0, "batch size (default: config batch)")
	workers := fs.Int("workers", -1, "kernel workers, 0 = physical cores (default: config workers)")
	weights := fs.String("weights", "", "SafeTensors checkpoint written from the model's state dict")
	name, err := oneName(fs, args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *batch == 0 {
		*batch = cfg.Batch
	}
	if *batch < 1 {
		return fmt.Errorf("probe: batch must be >= 1, got %d", *batch)
	}
	if *workers < 0 {
		*workers = cfg.Workers
	}
	if *weights == "" {
		*weights, _ = cfg.WeightsFor(name)
	}

	backend := cpu.NewWithConfig(parallel.WithWorkers(*workers))
	name, model, err := zoo.GetModel(name, backend)
	if err != nil {
		return err
	}
	nn.SetTraining(model, false)

	if *weights != "" {
		report, err := loader.LoadInto(*weights, model, loader.IdentityMapper{})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, report)
	}

	id, shape := zoo.GetDataset(name)
	ds := dataset.Dataset{Name: id, Shape: shape}
	input := tensor.Randn[float32](ds.WithBatch(*batch), backend)
	logits := model.Forward(input)

	fmt.Fprintf(out, "%s: input %v -> logits %v\n", name, input.Shape(), logits.Shape())
	for b, class := range logits.Argmax(1).Data() {
		fmt.Fprintf(out, "  [%d] class %d\n", b, class)
	}
	return nil
}

// cmdExport writes a freshly initialized model's state dict, in the layout
// probe -weights reads back.
func cmdExport(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	output := fs.String("o", "", "output SafeTensors file")
	dtype := fs.String("dtype", "F32", "stored float dtype: F32, F16 or BF16")
	name, err := oneName(fs, args)
	if err != nil {
		return err
	}
	if *output == "" {
		return errors.New("export: -o is required")
	}

	name, model, err := zoo.GetModel(name, cpu.New())
	if err != nil {
		return err
	}
	opts := loader.WriteOptions{
		Metadata: map[string]string{"model": name, "format": "pt"},
		Float:    loader.SafeTensorsDType(*dtype),
	}
	if err := loader.Save(*output, model, opts); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: wrote %d tensors to %s\n", name, len(model.StateDict()), *output)
	return nil
}

// cmdBert runs the BERT sequence classifier on random token ids.
func cmdBert(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("bert", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "YAML configuration supplying bert_config and weights.bert_tiny")
	hfConfig := fs.String("hf-config", "", "Hugging Face config.json (default: config bert_config, then bert-tiny)")
	weights := fs.String("weights", "", "Hugging Face SafeTensors checkpoint (default: config weights.bert_tiny)")
	textLen := fs.Int("text-len", 16, "number of tokens")
	if err := fs.Parse(args); err != nil {
		return err
	}

	zcfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *hfConfig == "" {
		*hfConfig = zcfg.BertConfig
	}
	if *weights == "" {
		*weights, _ = zcfg.WeightsFor(config.BertWeightsKey)
	}

	cfg := bert.TinyConfig()
	if *hfConfig != "" {
		if cfg, err = bert.LoadConfig(*hfConfig); err != nil {
			return err
		}
	}
	if *textLen < 1 || *textLen > cfg.MaxPositionEmbeddings {
		return fmt.Errorf("bert: text-len must be in [1, %d], got %d", cfg.MaxPositionEmbeddings, *textLen)
	}

	backend := cpu.New()
	model, err := bert.NewModel(cfg, backend)
	if err != nil {
		return err
	}
	model.Train(false)
	if *weights != "" {
		report, err := loader.LoadInto(*weights, model, loader.BertMapper{})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, report)
	}

	ids := make([]int32, *textLen)
	for i := range ids {
		//nolint:gosec // token ids for a smoke run
		ids[i] = int32(rand.Intn(cfg.VocabSize))
	}
	input, err := tensor.FromSlice(ids, tensor.Shape{1, *textLen}, backend)
	if err != nil {
		return err
	}
	logits := model.Forward(input, nil, nil)

	fmt.Fprintf(out, "%s: %d parameters, logits %v\n", bert.HubName, model.NumParameters(), logits.Shape())
	for i, v := range logits.Data() {
		label := cfg.ID2Label[fmt.Sprint(i)]
		if label == "" {
			label = fmt.Sprintf("LABEL_%d", i)
		}
		fmt.Fprintf(out, "  %s\t%.4f\n", label, v)
	}
	return nil
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	s, err := server.New(cfg, version)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := s.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// loadConfig reads path, or returns the defaults when path is empty.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
