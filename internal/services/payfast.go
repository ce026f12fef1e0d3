package services

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"online-storefront/internal/config"
	"online-storefront/internal/models"
)

// Canonical field names of the outbound payment request
const (
	FieldMerchantID  = "merchant_id"
	FieldMerchantKey = "merchant_key"
	FieldReturnURL   = "return_url"
	FieldCancelURL   = "cancel_url"
	FieldNotifyURL   = "notify_url"
	FieldNameFirst   = "name_first"
	FieldNameLast    = "name_last"
	FieldEmail       = "email_address"
	FieldPaymentID   = "m_payment_id"
	FieldAmount      = "amount"
	FieldItemName    = "item_name"
	FieldCustomStr1  = "custom_str1"
	FieldCustomStr2  = "custom_str2"
	FieldSignature   = "signature"

	// Inbound notification fields
	FieldPaymentStatus    = "payment_status"
	FieldAmountGross      = "amount_gross"
	FieldAmountFee        = "amount_fee"
	FieldAmountNet        = "amount_net"
	FieldGatewayPaymentID = "pf_payment_id"

	// PaymentStatusComplete is the notification status that confirms payment
	PaymentStatusComplete = "COMPLETE"
)

const itemDescription = "Online Storefront Purchase"

// PayFastService builds and signs outbound payment requests and verifies
// inbound asynchronous notifications. Instances are constructed explicitly
// with injected configuration; there is no package-level client.
type PayFastService struct {
	config config.PayFastConfig
}

// NewPayFastService creates a new payment gateway signer
func NewPayFastService(cfg config.PayFastConfig) *PayFastService {
	return &PayFastService{config: cfg}
}

// ProcessURL returns the gateway endpoint the signed request is posted to
func (s *PayFastService) ProcessURL() string {
	return s.config.ProcessURL
}

// FormatAmount renders a cent amount with exactly two decimal places. The
// formatted string is produced once per payment and reused verbatim in
// signing and verification; re-deriving it from a float would risk a rounding
// mismatch that breaks the signature.
func FormatAmount(cents int) string {
	return fmt.Sprintf("%.2f", float64(cents)/100.0)
}

// BuildRequest assembles the signed key/value payload for redirecting a buyer
// to the payment gateway
func (s *PayFastService) BuildRequest(order *models.Order, buyer *models.User) map[string]string {
	payload := map[string]string{
		FieldMerchantID:  s.config.MerchantID,
		FieldMerchantKey: s.config.MerchantKey,
		FieldReturnURL:   s.config.ReturnURL,
		FieldCancelURL:   s.config.CancelURL,
		FieldNotifyURL:   s.config.NotifyURL,
		FieldNameFirst:   buyer.FirstName,
		FieldNameLast:    buyer.LastName,
		FieldEmail:       buyer.Email,
		FieldPaymentID:   strconv.Itoa(order.ID),
		FieldAmount:      FormatAmount(order.TotalAmount),
		FieldItemName:    itemDescription,
		FieldCustomStr1:  order.OrderNumber,
		FieldCustomStr2:  strconv.Itoa(order.UserID),
	}

	payload[FieldSignature] = s.Sign(payload)
	return payload
}

// Sign computes the gateway signature over a payload. The canonicalization
// must match the gateway bit-exactly:
//
//  1. take all keys except "signature"
//  2. sort keys bytewise ascending
//  3. drop keys with empty values
//  4. join as key=urlencode(trim(value)) with "&"
//  5. append &passphrase=urlencode(trim(passphrase)) when configured
//  6. MD5, lower-case hex
//
// url.QueryEscape matches the gateway's encoding (space as "+", uppercase
// percent escapes).
func (s *PayFastService) Sign(payload map[string]string) string {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		if key == FieldSignature {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		value := strings.TrimSpace(payload[key])
		if value == "" {
			continue
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
		b.WriteByte('&')
	}

	canonical := strings.TrimSuffix(b.String(), "&")

	if passphrase := strings.TrimSpace(s.config.Passphrase); passphrase != "" {
		canonical += "&passphrase=" + url.QueryEscape(passphrase)
	}

	sum := md5.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// VerifyNotification authenticates an inbound gateway notification by
// recomputing the signature over its fields and comparing in constant time.
// On mismatch it returns a SignatureError that never contains the expected
// value.
func (s *PayFastService) VerifyNotification(fields map[string]string) error {
	received, ok := fields[FieldSignature]
	if !ok || received == "" {
		return &models.SignatureError{Message: "notification is missing a signature"}
	}

	expected := s.Sign(fields)
	if subtle.ConstantTimeCompare([]byte(received), []byte(expected)) != 1 {
		return &models.SignatureError{Message: "notification signature mismatch"}
	}

	return nil
}
