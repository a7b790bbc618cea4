package core

import "strings"

// Workbook column names. They must match the template headers exactly
// (matching is case-insensitive).
const (
	ColSerial      = "serie"
	ColName        = "nombre"
	ColCategory    = "area"
	ColItemType    = "tipo_item"
	ColPrice       = "precio"
	ColAcquiredOn  = "fecha_adquisicion"
	ColTag         = "codigo_utp"
	ColDescription = "descripcion"
	ColLocation    = "ambiente_codigo"
	ColStatus      = "estado"
	ColWarranty    = "garantia_hasta"
	ColNotes       = "observaciones"
	ColBatch       = "lote_codigo"

	ColLeasing         = "es_leasing"
	ColLeasingCompany  = "leasing_empresa"
	ColLeasingContract = "leasing_contrato"
	ColLeasingUntil    = "leasing_vencimiento"

	ColBrand        = "marca"
	ColModel        = "modelo"
	ColProcessor    = "procesador"
	ColProcessorGen = "generacion_procesador"
	ColRAMTotal     = "ram_total_gb"
	ColRAMConfig    = "ram_configuracion"
	ColRAMType      = "ram_tipo"
	ColStorageSize  = "almacenamiento_gb"
	ColStorageType  = "almacenamiento_tipo"
	ColOS           = "sistema_operativo"
)

// FieldType represents the expected data type for a column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
	FieldBool
	FieldInteger
)

// ColumnGroup decides how a column is presented in the template.
type ColumnGroup int

const (
	GroupRequired ColumnGroup = iota
	GroupOptional
	GroupTechnical
)

// ColumnSpec describes one template column.
type ColumnSpec struct {
	Name     string
	Group    ColumnGroup
	Type     FieldType
	Width    float64
	Help     string
	Examples [2]string
}

// Columns is the template column set, in template order.
var Columns = []ColumnSpec{
	{Name: ColSerial, Group: GroupRequired, Type: FieldText, Width: 20, Help: "Serial number, unique across the inventory", Examples: [2]string{"SN123456789", "SN987654321"}},
	{Name: ColName, Group: GroupRequired, Type: FieldText, Width: 30, Help: "Item name", Examples: [2]string{"Laptop Dell Latitude 5420", "Proyector Epson X41"}},
	{Name: ColCategory, Group: GroupRequired, Type: FieldEnum, Width: 15, Help: "sistemas, operaciones or laboratorio", Examples: [2]string{"sistemas", "operaciones"}},
	{Name: ColItemType, Group: GroupRequired, Type: FieldText, Width: 20, Help: "Item type registered for the area", Examples: [2]string{"Laptop", "Proyector"}},
	{Name: ColPrice, Group: GroupRequired, Type: FieldNumeric, Width: 12, Help: "Purchase price, non-negative", Examples: [2]string{"3500.00", "1200.50"}},
	{Name: ColAcquiredOn, Group: GroupRequired, Type: FieldDate, Width: 18, Help: "YYYY-MM-DD, DD/MM/YYYY or DD-MM-YYYY", Examples: [2]string{"2026-01-15", "20/02/2026"}},
	{Name: ColTag, Group: GroupOptional, Type: FieldText, Width: 15, Help: "Physical tag UTP followed by digits; empty means pending", Examples: [2]string{"UTP296375", ""}},
	{Name: ColDescription, Group: GroupOptional, Type: FieldText, Width: 30, Help: "Free text description", Examples: [2]string{"Equipo para docentes", ""}},
	{Name: ColLocation, Group: GroupOptional, Type: FieldText, Width: 18, Help: "Code of an active location", Examples: [2]string{"LIM-A-101", ""}},
	{Name: ColStatus, Group: GroupOptional, Type: FieldEnum, Width: 12, Help: "nuevo, instalado, dañado or obsoleto", Examples: [2]string{"nuevo", "instalado"}},
	{Name: ColWarranty, Group: GroupOptional, Type: FieldDate, Width: 18, Help: "Warranty expiry date", Examples: [2]string{"2029-01-15", ""}},
	{Name: ColNotes, Group: GroupOptional, Type: FieldText, Width: 30, Help: "Notes", Examples: [2]string{"", "Caja sellada"}},
	{Name: ColBatch, Group: GroupOptional, Type: FieldText, Width: 16, Help: "Code of an active batch (LOT-YYYY-NNNN)", Examples: [2]string{"", ""}},
	{Name: ColLeasing, Group: GroupOptional, Type: FieldBool, Width: 12, Help: "SI or NO", Examples: [2]string{"NO", "SI"}},
	{Name: ColLeasingCompany, Group: GroupOptional, Type: FieldText, Width: 20, Help: "Leasing company", Examples: [2]string{"", "Renting Peru SAC"}},
	{Name: ColLeasingContract, Group: GroupOptional, Type: FieldText, Width: 18, Help: "Leasing contract number", Examples: [2]string{"", "CTR-2026-009"}},
	{Name: ColLeasingUntil, Group: GroupOptional, Type: FieldDate, Width: 20, Help: "Leasing end date", Examples: [2]string{"", "2028-12-31"}},
	{Name: ColBrand, Group: GroupTechnical, Type: FieldText, Width: 14, Help: "Brand (sistemas only)", Examples: [2]string{"Dell", ""}},
	{Name: ColModel, Group: GroupTechnical, Type: FieldText, Width: 16, Help: "Model (sistemas only)", Examples: [2]string{"Latitude 5420", ""}},
	{Name: ColProcessor, Group: GroupTechnical, Type: FieldText, Width: 18, Help: "Processor", Examples: [2]string{"Intel Core i7", ""}},
	{Name: ColProcessorGen, Group: GroupTechnical, Type: FieldText, Width: 20, Help: "Processor generation", Examples: [2]string{"11th Gen", ""}},
	{Name: ColRAMTotal, Group: GroupTechnical, Type: FieldInteger, Width: 14, Help: "Total RAM in GB", Examples: [2]string{"16", ""}},
	{Name: ColRAMConfig, Group: GroupTechnical, Type: FieldText, Width: 18, Help: "RAM layout, e.g. 2x8GB", Examples: [2]string{"2x8GB", ""}},
	{Name: ColRAMType, Group: GroupTechnical, Type: FieldEnum, Width: 10, Help: "DDR3, DDR4 or DDR5", Examples: [2]string{"DDR4", ""}},
	{Name: ColStorageSize, Group: GroupTechnical, Type: FieldInteger, Width: 18, Help: "Storage in GB", Examples: [2]string{"512", ""}},
	{Name: ColStorageType, Group: GroupTechnical, Type: FieldEnum, Width: 20, Help: "HDD, SSD, NVMe or eMMC", Examples: [2]string{"NVMe", ""}},
	{Name: ColOS, Group: GroupTechnical, Type: FieldText, Width: 20, Help: "Operating system", Examples: [2]string{"Windows 11 Pro", ""}},
}

// RequiredColumns returns the names of columns that must be present in the header.
func RequiredColumns() []string {
	var names []string
	for _, c := range Columns {
		if c.Group == GroupRequired {
			names = append(names, c.Name)
		}
	}
	return names
}

// ColumnsInGroup returns the column names belonging to group, in template order.
func ColumnsInGroup(group ColumnGroup) []string {
	var names []string
	for _, c := range Columns {
		if c.Group == group {
			names = append(names, c.Name)
		}
	}
	return names
}

// fieldTypeName returns a human-readable name for a field type.
func fieldTypeName(ft FieldType) string {
	switch ft {
	case FieldText:
		return "text"
	case FieldEnum:
		return "one of a fixed list"
	case FieldDate:
		return "date"
	case FieldNumeric:
		return "number"
	case FieldBool:
		return "yes/no"
	case FieldInteger:
		return "whole number"
	default:
		return "value"
	}
}

// ValidateHeaders checks that every required column exists in the header row.
// Returns the header index, or an error wrapping ErrMissingHeaders.
func ValidateHeaders(headers []string) (HeaderIndex, error) {
	idx := MakeHeaderIndex(headers)
	var missing []string

	for _, name := range RequiredColumns() {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return nil, &MissingHeadersError{Missing: missing}
	}

	return idx, nil
}

// MissingHeadersError lists required columns absent from the header row.
type MissingHeadersError struct {
	Missing []string
}

func (e *MissingHeadersError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

func (e *MissingHeadersError) Unwrap() error {
	return ErrMissingHeaders
}
