package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"online-storefront/internal/models"
)

// InvoiceService renders order invoices as minimal PDF documents
type InvoiceService struct{}

// NewInvoiceService creates a new invoice service
func NewInvoiceService() *InvoiceService {
	return &InvoiceService{}
}

// RenderInvoice generates a PDF invoice for an order and returns the document
// bytes together with a unique invoice reference number
func (s *InvoiceService) RenderInvoice(order *models.Order) ([]byte, string, error) {
	if order == nil {
		return nil, "", &models.ValidationError{Message: "order is required"}
	}

	reference := fmt.Sprintf("INV-%s", uuid.NewString()[:8])

	var buffer bytes.Buffer

	buffer.WriteString("%PDF-1.4\n")

	// Object 1: Catalog
	buffer.WriteString("1 0 obj\n<<\n/Type /Catalog\n/Pages 2 0 R\n>>\nendobj\n\n")

	// Object 2: Pages
	buffer.WriteString("2 0 obj\n<<\n/Type /Pages\n/Kids [3 0 R]\n/Count 1\n>>\nendobj\n\n")

	content := s.generateInvoiceContent(order, reference)
	contentStream := s.formatContentForPDF(content)

	// Object 3: Page
	buffer.WriteString("3 0 obj\n<<\n/Type /Page\n/Parent 2 0 R\n/MediaBox [0 0 612 792]\n")
	buffer.WriteString("/Contents 4 0 R\n/Resources <<\n/Font <<\n/F1 5 0 R\n>>\n>>\n>>\nendobj\n\n")

	// Object 4: Content stream
	buffer.WriteString(fmt.Sprintf("4 0 obj\n<<\n/Length %d\n>>\nstream\n", len(contentStream)))
	buffer.WriteString(contentStream)
	buffer.WriteString("\nendstream\nendobj\n\n")

	// Object 5: Font (Helvetica)
	buffer.WriteString("5 0 obj\n<<\n/Type /Font\n/Subtype /Type1\n/BaseFont /Helvetica\n>>\nendobj\n\n")

	buffer.WriteString("xref\n0 6\n")
	buffer.WriteString("0000000000 65535 f \n")
	buffer.WriteString("0000000010 00000 n \n")
	buffer.WriteString("0000000079 00000 n \n")
	buffer.WriteString("0000000136 00000 n \n")
	buffer.WriteString("0000000301 00000 n \n")
	buffer.WriteString("0000000380 00000 n \n")
	buffer.WriteString("trailer\n<<\n/Size 6\n/Root 1 0 R\n>>\nstartxref\n459\n%%EOF\n")

	return buffer.Bytes(), reference, nil
}

// generateInvoiceContent creates the formatted invoice text
func (s *InvoiceService) generateInvoiceContent(order *models.Order, reference string) string {
	var content strings.Builder

	content.WriteString("INVOICE\n")
	content.WriteString("=======\n\n")
	content.WriteString(fmt.Sprintf("Invoice Reference: %s\n", reference))
	content.WriteString(fmt.Sprintf("Order Number: %s\n", order.OrderNumber))
	content.WriteString(fmt.Sprintf("Order Date: %s\n", order.CreatedAt.Format("January 2, 2006 at 3:04 PM")))
	content.WriteString(fmt.Sprintf("Billed To: %s <%s>\n", order.BillingName, order.BillingEmail))
	content.WriteString(fmt.Sprintf("Ship To: %s\n", order.ShippingAddress))
	content.WriteString("\n")

	content.WriteString("ITEMS\n")
	content.WriteString("-----\n")
	for _, item := range order.Items {
		content.WriteString(fmt.Sprintf("%s  x%d  @ %.2f  =  %.2f\n",
			item.ProductName, item.Quantity,
			float64(item.UnitPrice)/100.0, float64(item.LineTotal())/100.0))
	}
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("TOTAL: %.2f\n", order.TotalAmountInCurrency()))
	content.WriteString(fmt.Sprintf("Payment Method: %s\n", order.PaymentMethod))
	content.WriteString(fmt.Sprintf("Payment Status: %s\n", order.GetStatusDisplayName()))

	return content.String()
}

// formatContentForPDF converts text content into a PDF text stream
func (s *InvoiceService) formatContentForPDF(content string) string {
	var stream strings.Builder

	stream.WriteString("BT\n/F1 10 Tf\n50 750 Td\n")

	for _, line := range strings.Split(content, "\n") {
		line = strings.ReplaceAll(line, "\\", "\\\\")
		line = strings.ReplaceAll(line, "(", "\\(")
		line = strings.ReplaceAll(line, ")", "\\)")
		stream.WriteString(fmt.Sprintf("(%s) Tj\n0 -14 Td\n", line))
	}

	stream.WriteString("ET")
	return stream.String()
}
