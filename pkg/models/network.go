package models

// Network is a dashboard network an operator account can see. ID is the
// durable key for every API call; Name is only used for display and matching.
type Network struct {
	ID           string   `json:"id" yaml:"id" example:"L_646829496481105433"`
	Name         string   `json:"name" yaml:"name" example:"Branch Network"`
	ProductTypes []string `json:"productTypes,omitempty" yaml:"product_types,omitempty"`
	TimeZone     string   `json:"timeZone,omitempty" yaml:"time_zone,omitempty" example:"America/Los_Angeles"`
}

// HasProduct reports whether the network carries the given product type
// (e.g. "appliance").
func (n Network) HasProduct(productType string) bool {
	for _, p := range n.ProductTypes {
		if p == productType {
			return true
		}
	}
	return false
}
