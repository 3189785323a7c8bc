package extract

import (
	"strings"

	"github.com/dvloznov/receipt-ledger/internal/ledger"
)

// receiptPrompt builds the extraction instructions, including the
// closed category vocabulary the normalizer expects.
func receiptPrompt() string {
	var b strings.Builder

	b.WriteString("You are a receipt analysis service for a personal finance assistant.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Read the attached receipt image and extract the structured purchase data.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a single JSON object.\n\n")
	b.WriteString("The object must have these fields:\n")
	b.WriteString("- \"merchant_name\": string, the store or vendor name\n")
	b.WriteString("- \"transaction_date\": string, ISO format \"YYYY-MM-DD\" when readable\n")
	b.WriteString("- \"total_amount\": number, the final paid total\n")
	b.WriteString("- \"currency\": string 3-letter code (e.g. \"USD\"), or omit if unknown\n")
	b.WriteString("- \"payment_method\": string or null\n")
	b.WriteString("- \"items\": array of {\"name\": string, \"price\": number, \"quantity\": integer, \"category\": string}\n")
	b.WriteString("- \"tax_information\": {\"sales_tax\": number, \"tax_rate\": number} or null\n\n")

	b.WriteString("Use ONLY the following item categories:\n")
	for _, c := range ledger.Categories {
		b.WriteString("  - " + c + "\n")
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- \"price\" is the unit price of one item, not the extended line amount.\n")
	b.WriteString("- If a field cannot be read from the receipt, omit it rather than guessing.\n")
	b.WriteString("- If you are unsure about an item's category, use \"Other\".\n")
	b.WriteString("- Return ONLY valid raw JSON.\n")
	b.WriteString("- Do NOT wrap the response in code fences.\n")
	b.WriteString("- Do NOT use ```json or any Markdown.\n")
	b.WriteString("- Output must begin with \"{\" and end with \"}\".\n")

	return b.String()
}
