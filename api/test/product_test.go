package test

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/osanval/cafeto/core/product"
)

type productTest struct {
	*TestEnv
}

func TestProduct(t *testing.T) {
	env, err := NewTestEnv(t, "product_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	pt := &productTest{env}

	// Regular users cannot manage the menu.
	if err := Login(env, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	pt.createProductStatus(t, "latte", 380, http.StatusForbidden)
	if err := Logout(env); err != nil {
		t.Fatal(err)
	}

	if err := Login(env, env.AdminEmail, env.AdminPass); err != nil {
		t.Fatal(err)
	}

	p1 := pt.createProductOK(t, "latte", 380)
	p2 := pt.createProductOK(t, "flat white", 360)

	// Timestamps lose sub-microsecond precision on the round trip, so
	// compare everything but them.
	var got product.Product
	pt.request(t, http.MethodGet, "/products/"+p1.ID, nil, http.StatusOK, &got)
	ignoreTimes := cmpopts.IgnoreFields(product.Product{}, "CreatedAt", "UpdatedAt")
	if diff := cmp.Diff(p1, got, ignoreTimes); diff != "" {
		t.Fatalf("fetched product differs (-want +got):\n%s", diff)
	}

	var list []product.Product
	pt.request(t, http.MethodGet, "/products", nil, http.StatusOK, &list)
	if len(list) != 2 {
		t.Fatalf("expected 2 products, got %d", len(list))
	}

	// Partial update touches only the given fields.
	newPrice := 420
	up := product.ProductUp{Price: &newPrice}
	var updated product.Product
	pt.request(t, http.MethodPut, "/products/"+p2.ID, up, http.StatusOK, &updated)
	if updated.Price != 420 || updated.Name != "flat white" {
		t.Fatalf("unexpected product after update: %+v", updated)
	}

	pt.uploadImageOK(t, p1.ID)

	pt.request(t, http.MethodDelete, "/products/"+p2.ID, nil, http.StatusNoContent, nil)
	pt.request(t, http.MethodGet, "/products/"+p2.ID, nil, http.StatusNotFound, nil)
}

func (pt *productTest) createProductOK(t *testing.T, name string, price int) product.Product {
	t.Helper()

	pn := product.ProductNew{
		Name:        name,
		Description: "a " + name,
		Price:       price,
	}

	var prod product.Product
	pt.request(t, http.MethodPost, "/products", pn, http.StatusCreated, &prod)

	if prod.ID == "" || prod.Name != name || prod.Price != price {
		t.Fatalf("unexpected created product: %+v", prod)
	}
	return prod
}

func (pt *productTest) createProductStatus(t *testing.T, name string, price int, status int) {
	t.Helper()

	pn := product.ProductNew{Name: name, Price: price}
	pt.request(t, http.MethodPost, "/products", pn, status, nil)
}

func (pt *productTest) uploadImageOK(t *testing.T, productID string) {
	t.Helper()

	var imgBuf bytes.Buffer
	if err := png.Encode(&imgBuf, image.NewRGBA(image.Rect(0, 0, 640, 480))); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "product.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(imgBuf.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := http.NewRequest(http.MethodPost, pt.URL+"/products/"+productID+"/image", &body)
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", mw.FormDataContentType())

	w, err := pt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("uploading image: status code %s", w.Status)
	}

	var resp struct {
		ImageURL string `json:"imageUrl"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.ImageURL, "/static/") {
		t.Fatalf("unexpected image url %q", resp.ImageURL)
	}

	// The product now points at the stored image and the file is served.
	var prod product.Product
	pt.request(t, http.MethodGet, "/products/"+productID, nil, http.StatusOK, &prod)
	if prod.ImageURL != resp.ImageURL {
		t.Fatalf("product image url %q, upload returned %q", prod.ImageURL, resp.ImageURL)
	}

	sw, err := pt.Client().Get(pt.URL + resp.ImageURL)
	if err != nil {
		t.Fatal(err)
	}
	defer sw.Body.Close()
	if sw.StatusCode != http.StatusOK {
		t.Fatalf("fetching stored image: status code %s", sw.Status)
	}

	// The thumbnail renders on a background goroutine.
	name := strings.TrimPrefix(resp.ImageURL, "/static/")
	thumb := filepath.Join(pt.StorageDir, "thumb", strings.TrimSuffix(name, ".png")+".jpg")

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(thumb); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("thumbnail %s never appeared", thumb)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
