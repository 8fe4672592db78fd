package export

import "fmt"

// Formats supported by Render.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// Append adds a row built from values in header order.
func (d *Dataset) Append(values ...string) {
	row := make(map[string]string, len(d.Headers))
	for i, header := range d.Headers {
		if i < len(values) {
			row[header] = values[i]
		}
	}
	d.Rows = append(d.Rows, row)
}

// File is a rendered export ready to be sent as an attachment.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// Render encodes the dataset in the requested format.
func Render(format, baseName string, data Dataset) (*File, error) {
	switch format {
	case FormatCSV, "":
		body, err := NewCSVExporter().Render(data)
		if err != nil {
			return nil, err
		}
		return &File{Name: baseName + ".csv", ContentType: "text/csv", Body: body}, nil
	case FormatPDF:
		body, err := NewPDFExporter().Render(data, data.Title)
		if err != nil {
			return nil, err
		}
		return &File{Name: baseName + ".pdf", ContentType: "application/pdf", Body: body}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
