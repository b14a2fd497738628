// Package i18n holds the UI message catalogs. Spanish is the default language.
package i18n

import (
	"context"
	"strings"
)

const DefaultLang = "es"

type langKey struct{}

var catalogs = map[string]map[string]string{
	"es": {
		"required":             "Requerido",
		"invalid_email":        "Correo inválido",
		"invalid_choice":       "Opción inválida",
		"must_not_be_negative": "No puede ser negativo",
		"login.error":          "Credenciales incorrectas",
		"nav.dashboard":        "Panel",
		"nav.clients":          "Clientes",
		"nav.suppliers":        "Proveedores",
		"nav.products":         "Productos",
		"nav.surveys":          "Caracterización",
		"nav.quotations":       "Cotizaciones",
		"nav.reports":          "Informes",
		"nav.settings":         "Configuración",
		"nav.logout":           "Salir",
		"msg.enviado":          "Correo enviado correctamente",
		"msg.eliminado":        "Registro eliminado",
		"msg.reseteado":        "Consecutivo reiniciado: la siguiente cotización será la 10001",
		"msg.guardado":         "Cambios guardados",
		"msg.sin_email":        "La cotización no tiene correo de destino",
		"msg.error_envio":      "No se pudo enviar el correo",
		"msg.no_encontrado":    "Registro no encontrado",
		"msg.no_autorizado":    "No tiene permisos para esta acción",
		"msg.datos_invalidos":  "Revise los datos del formulario",
		"msg.creada":           "Cotización guardada",
		"msg.link_enviado":     "Enlace enviado al cliente",
		"msg.estado":           "Estado actualizado",
		"msg.clave":            "Contraseña actualizada",
		"msg.rol":              "Rol actualizado",
		"msg.error":            "Ocurrió un error inesperado",
		"invalid_number":       "Número inválido",
		"quotation.total":      "Total a pagar",
		"quotation.subtotal":   "Subtotal",
		"quotation.reference":  "Referencia",
	},
	"en": {
		"required":             "Required",
		"invalid_email":        "Invalid email",
		"invalid_choice":       "Invalid choice",
		"must_not_be_negative": "Must not be negative",
		"login.error":          "Invalid credentials",
		"nav.dashboard":        "Dashboard",
		"nav.clients":          "Clients",
		"nav.suppliers":        "Suppliers",
		"nav.products":         "Products",
		"nav.surveys":          "Surveys",
		"nav.quotations":       "Quotations",
		"nav.reports":          "Reports",
		"nav.settings":         "Settings",
		"nav.logout":           "Log out",
		"msg.enviado":          "Email sent",
		"msg.eliminado":        "Record deleted",
		"msg.reseteado":        "Numbering reset: the next quotation will be 10001",
		"msg.guardado":         "Changes saved",
		"msg.sin_email":        "The quotation has no recipient email",
		"msg.error_envio":      "The email could not be sent",
		"msg.no_encontrado":    "Record not found",
		"msg.no_autorizado":    "You are not allowed to do that",
		"msg.datos_invalidos":  "Check the form fields",
		"msg.creada":           "Quotation saved",
		"msg.link_enviado":     "Link sent to the client",
		"msg.estado":           "Status updated",
		"msg.clave":            "Password updated",
		"msg.rol":              "Role updated",
		"msg.error":            "Something went wrong",
		"invalid_number":       "Invalid number",
		"quotation.total":      "Total due",
		"quotation.subtotal":   "Subtotal",
		"quotation.reference":  "Reference",
	},
}

// T translates code for lang. Unknown languages fall back to Spanish and
// unknown codes are returned as-is.
func T(lang, code string) string {
	if m, ok := catalogs[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := catalogs[DefaultLang][code]; ok {
		return s
	}
	return code
}

// DetectLanguage picks the first supported language from an Accept-Language header.
func DetectLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		base, _, _ := strings.Cut(strings.ToLower(tag), "-")
		if _, ok := catalogs[base]; ok {
			return base
		}
	}
	return DefaultLang
}

// Supported reports whether lang has a catalog.
func Supported(lang string) bool {
	_, ok := catalogs[lang]
	return ok
}

func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, langKey{}, lang)
}

func LangFromContext(ctx context.Context) string {
	if l, ok := ctx.Value(langKey{}).(string); ok && l != "" {
		return l
	}
	return DefaultLang
}
