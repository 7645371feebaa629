package admin

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/validation"
)

// maxUploadMemory bounds the multipart form kept in memory; larger files
// spill to disk.
const maxUploadMemory = validation.MaxImageSize + 1<<20

// readProductForm reads the submitted fields. The image file is returned
// separately and is nil when none was chosen.
func readProductForm(r *http.Request) (ProductForm, *multipart.FileHeader) {
	f := ProductForm{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Price:       strings.TrimSpace(r.FormValue("price")),
		SalePrice:   strings.TrimSpace(r.FormValue("sale_price")),
		Gender:      r.FormValue("gender"),
		Stock:       strings.TrimSpace(r.FormValue("stock")),
		Sizes:       r.FormValue("sizes"),
		Colors:      r.FormValue("colors"),
		Featured:    r.FormValue("featured") != "",
		Active:      r.FormValue("active") != "",
	}
	f.CategoryID, _ = strconv.ParseInt(strings.TrimSpace(r.FormValue("category_id")), 10, 64)

	var image *multipart.FileHeader
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["image"]; len(files) > 0 && files[0].Filename != "" {
			image = files[0]
		}
	}
	return f, image
}

// input validates the form and converts it to store input.
func (f ProductForm) input() (store.ProductInput, validation.FieldErrors) {
	fe := validation.FieldErrors{}
	v := validation.Product{
		Name:        f.Name,
		Description: f.Description,
		CategoryID:  f.CategoryID,
		Gender:      f.Gender,
		Sizes:       splitList(f.Sizes),
		Colors:      splitList(f.Colors),
		Featured:    f.Featured,
		Active:      f.Active,
	}

	price, err := strconv.ParseFloat(f.Price, 64)
	if err != nil {
		fe.Add("price", "must be a number")
	}
	v.Price = price

	if f.SalePrice != "" {
		sale, err := strconv.ParseFloat(f.SalePrice, 64)
		if err != nil {
			fe.Add("sale_price", "must be a number")
		} else {
			v.SalePrice = &sale
		}
	}

	if f.Stock != "" {
		n, err := strconv.Atoi(f.Stock)
		if err != nil {
			fe.Add("stock", "must be a whole number")
		}
		v.Stock = n
	}

	if err := validation.ProductForm(&v); err != nil {
		if verrs, ok := err.(validation.FieldErrors); ok {
			for field, msg := range verrs {
				fe.Add(field, msg)
			}
		}
	}
	if len(fe) > 0 {
		return store.ProductInput{}, fe
	}

	in := store.ProductInput{
		Name:        v.Name,
		Description: v.Description,
		Price:       store.MoneyFromFloat(v.Price),
		CategoryID:  v.CategoryID,
		Gender:      v.Gender,
		Sizes:       v.Sizes,
		Colors:      v.Colors,
		Stock:       v.Stock,
		Image:       f.Image,
		Featured:    v.Featured,
		Active:      v.Active,
	}
	if v.SalePrice != nil {
		sale := store.MoneyFromFloat(*v.SalePrice)
		in.SalePrice = &sale
	}
	return in, nil
}

// formFromProduct fills the form for editing p.
func formFromProduct(p *store.Product) ProductForm {
	f := ProductForm{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       strconv.FormatFloat(p.Price.Float(), 'f', 2, 64),
		CategoryID:  p.CategoryID,
		Gender:      p.Gender,
		Stock:       strconv.Itoa(p.Stock),
		Sizes:       strings.Join(p.Sizes, ", "),
		Colors:      strings.Join(p.Colors, ", "),
		Image:       p.Image,
		Featured:    p.Featured,
		Active:      p.Active,
	}
	if p.SalePrice != nil {
		f.SalePrice = strconv.FormatFloat(p.SalePrice.Float(), 'f', 2, 64)
	}
	return f
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
