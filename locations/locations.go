/*******************************************************************************
 * Copyright (c) 2026 Genome Research Ltd.
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

// Package locations writes the files from which the warehouse learns where
// in the store the data of each product are kept.
package locations

import (
	"io"
	"os"
	"path"
	"sync"

	"github.com/goccy/go-json"
	"github.com/inconshreveable/log15"
)

const (
	// FileVersion is the version of the file layout written.
	FileVersion = "1.0"

	// PipelineProduction names the production pipeline.
	PipelineProduction = "npg-prod"

	PlatformPacBio = "pacbio"
)

// Product is the location of the data of one product.
type Product struct {
	IDProduct             string `json:"id_product"`
	PipelineName          string `json:"pipeline_name"`
	PlatformName          string `json:"platform_name"`
	RootCollection        string `json:"irods_root_collection"`
	DataRelativePath      string `json:"irods_data_relative_path"`
	SecondaryRelativePath string `json:"irods_secondary_data_relative_path,omitempty"`
}

type file struct {
	Version  string     `json:"version"`
	Products []*Product `json:"products"`
}

// Writer collects the data objects of products and writes their locations.
// Products may be added concurrently.
type Writer struct {
	Platform string
	Pipeline string
	Logger   log15.Logger

	mu       sync.Mutex
	paths    []string
	products map[string]string
}

// NewWriter returns a Writer for products of the given platform made by the
// production pipeline.
func NewWriter(platform string) *Writer {
	return &Writer{
		Platform: platform,
		Pipeline: PipelineProduction,
		products: make(map[string]string),
	}
}

// AddProduct records that the data object at objPath holds data of the given
// product. Adding a path again replaces its product.
func (w *Writer) AddProduct(objPath, idProduct string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.products[objPath]; !ok {
		w.paths = append(w.paths, objPath)
	}

	w.products[objPath] = idProduct
}

// Len returns the number of data objects added.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.paths)
}

// Products returns the products to be written, in the order their first data
// objects were added. A second data object of a product in the same
// collection is recorded as the product's secondary data.
func (w *Writer) Products() []*Product {
	w.mu.Lock()
	defer w.mu.Unlock()

	var products []*Product

	byKey := make(map[[2]string]*Product)

	for _, p := range w.paths {
		coll := path.Dir(p) + "/"
		id := w.products[p]
		key := [2]string{coll, id}

		if product, ok := byKey[key]; ok {
			if w.Logger != nil {
				w.Logger.Warn("adding second data object as secondary data",
					"collection", coll, "id_product", id, "path", p)
			}

			product.SecondaryRelativePath = path.Base(p)

			continue
		}

		product := &Product{
			IDProduct:        id,
			PipelineName:     w.Pipeline,
			PlatformName:     w.Platform,
			RootCollection:   coll,
			DataRelativePath: path.Base(p),
		}

		byKey[key] = product
		products = append(products, product)
	}

	return products
}

// Write writes the locations of the products added as JSON. It writes
// nothing and returns false if none were added.
func (w *Writer) Write(out io.Writer) (bool, error) {
	if w.Len() == 0 {
		return false, nil
	}

	if err := json.NewEncoder(out).Encode(file{Version: FileVersion, Products: w.Products()}); err != nil {
		return false, err
	}

	return true, nil
}

// WriteFile is Write to a new file at path. No file is made if no products
// were added.
func (w *Writer) WriteFile(path string) (bool, error) {
	if w.Len() == 0 {
		return false, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return false, err
	}

	ok, err := w.Write(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	return ok && err == nil, err
}
