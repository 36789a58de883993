package utils

import (
	"bytes"
	"html/template"
	"time"

	"marketplace_back_end/internal/models"
)

// Email est un message prêt à l'envoi.
type Email struct {
	Subject string
	HTML    string
}

const layout = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>{{.Title}}</title></head>
<body style="margin:0;padding:40px 20px;font-family:Arial,sans-serif;background-color:#f5f5f5;">
  <div style="max-width:600px;margin:auto;background:#ffffff;border-radius:12px;padding:30px;">
    <h2 style="color:{{.Color}};margin-top:0;">{{.Title}}</h2>
    {{range .Lines}}<p style="color:#333333;font-size:16px;line-height:1.6;">{{.}}</p>{{end}}
    {{if .Code}}<p style="font-size:32px;letter-spacing:8px;font-weight:700;text-align:center;">{{.Code}}</p>{{end}}
  </div>
</body>
</html>`

var emailLayout = template.Must(template.New("email").Parse(layout))

type emailView struct {
	Title string
	Color string
	Lines []string
	Code  string
}

func render(subject string, v emailView) Email {
	var buf bytes.Buffer
	// Le gabarit est constant, seules les données varient.
	_ = emailLayout.Execute(&buf, v)
	return Email{Subject: subject, HTML: buf.String()}
}

// OTPEmail contient le code de vérification envoyé à l'inscription.
func OTPEmail(code string, expiry time.Duration) Email {
	return render("Your verification code", emailView{
		Title: "Verify your account",
		Color: "#667eea",
		Lines: []string{"Use the code below to verify your account. It expires in " + expiry.String() + "."},
		Code:  code,
	})
}

// PasswordResetEmail contient le code de réinitialisation du mot de passe.
func PasswordResetEmail(code string, expiry time.Duration) Email {
	return render("Password reset code", emailView{
		Title: "Reset your password",
		Color: "#f59e0b",
		Lines: []string{
			"Someone asked to reset the password of your account. It expires in " + expiry.String() + ".",
			"If it was not you, you can ignore this e-mail.",
		},
		Code: code,
	})
}

func WelcomeEmail(firstName string) Email {
	return render("Welcome to the marketplace!", emailView{
		Title: "Welcome " + firstName + "!",
		Color: "#10b981",
		Lines: []string{"Your account is verified. You can start shopping right away."},
	})
}

var statusColors = map[models.OrderStatus]string{
	models.OrderPaid:      "#10b981",
	models.OrderShipped:   "#3b82f6",
	models.OrderDelivered: "#8b5cf6",
	models.OrderCanceled:  "#ef4444",
}

// StatusMessage est le texte de notification d'un changement de statut.
func StatusMessage(o models.Order) string {
	switch o.Status {
	case models.OrderPaid:
		return "Your payment for order #" + o.Reference() + " was confirmed."
	case models.OrderShipped:
		return "Your order #" + o.Reference() + " has been shipped."
	case models.OrderDelivered:
		return "Your order #" + o.Reference() + " has been delivered."
	case models.OrderCanceled:
		return "Your order #" + o.Reference() + " was canceled."
	}
	return "Your order #" + o.Reference() + " was updated."
}

func OrderStatusEmail(o models.Order) Email {
	color, ok := statusColors[o.Status]
	if !ok {
		color = "#6b7280"
	}
	return render("Order #"+o.Reference()+" is "+string(o.Status), emailView{
		Title: "Order update",
		Color: color,
		Lines: []string{StatusMessage(o), "Amount: " + o.Amount.StringFixed(2)},
	})
}
