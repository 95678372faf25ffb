// Package printing provides the rendering side of the load order pipeline:
// record normalization, the manifest templates and their engine, the layout
// renderer, the chromedp print context and the orchestrator that drives it.
//
// Example usage:
//
//	store, err := NewTemplateStore(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	encoder := barcode.NewEncoder(barcode.DefaultOptions(), logger)
//	renderer := NewLayoutRenderer(store, NewTemplateEngine(), encoder)
//	doc, err := renderer.Render(ctx, job)
package printing
