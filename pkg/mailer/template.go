package mailer

import (
	"html/template"
	"strings"
	"time"

	"github.com/VaibhavMttl21/ItemManager/pkg/domain"
)

var enquiryTmpl = template.Must(template.New("enquiry").Parse(`
<h2>New Item Enquiry</h2>
<div style="border: 1px solid #ddd; padding: 20px; border-radius: 8px; max-width: 600px;">
  <h3>Item Details:</h3>
  <p><strong>Name:</strong> {{.Item.Name}}</p>
  <p><strong>Type:</strong> {{.Item.Type}}</p>
  <p><strong>Description:</strong> {{.Item.Description}}</p>
  <p><strong>Enquiry Date:</strong> {{.EnquiryDate}}</p>

  <h4>Cover Image:</h4>
  <img src="{{.Item.CoverImage}}" alt="{{.Item.Name}}" style="max-width: 300px; height: auto; border-radius: 4px;">

  {{if .Item.Images}}
  <h4>Additional Images:</h4>
  <div style="display: flex; flex-wrap: wrap; gap: 10px;">
    {{range .Item.Images}}
    <img src="{{.}}" alt="{{$.Item.Name}}" style="width: 150px; height: 150px; object-fit: cover; border-radius: 4px;">
    {{end}}
  </div>
  {{end}}
</div>

<p style="margin-top: 20px; color: #666;">
  This enquiry was generated automatically from the Item Management System.
</p>
`))

func renderEnquiry(item domain.Item, now time.Time) (string, error) {
	var b strings.Builder
	err := enquiryTmpl.Execute(&b, struct {
		Item        domain.Item
		EnquiryDate string
	}{
		Item:        item,
		EnquiryDate: now.Format("1/2/2006, 3:04:05 PM"),
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
