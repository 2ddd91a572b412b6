// Package loader reads pretrained weights into zoo models.
//
// Weights come from SafeTensors files, the Hugging Face standard:
//
//	[8 bytes: header size, uint64 little-endian]
//	[header: JSON map of tensor name -> {dtype, shape, data_offsets}]
//	[tensor data]
//
// F16 and BF16 tensors are widened to float32 on load. A WeightMapper
// renames file tensors to the model's state-dict keys before loading.
// Save writes a model's state dict in the same format, optionally
// narrowing float32 to F16 or BF16.
//
// Example:
//
//	model, _ := bert.NewModel(bert.TinyConfig(), backend)
//	report, err := loader.LoadInto("model.safetensors", model, loader.BertMapper{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report)
package loader
