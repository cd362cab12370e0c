package memstore

import "github.com/shopspring/decimal"

// NewDemo returns a store with the reference catalogs and a small product
// line, for running the API without PostgreSQL.
func NewDemo() *Store {
	s := New()

	statuses := map[string]int64{}
	for _, st := range []struct{ code, name string }{
		{"LC", "Preocupación Menor"},
		{"NT", "Casi Amenazado"},
		{"VU", "Vulnerable"},
		{"EN", "En Peligro"},
		{"CR", "En Peligro Crítico"},
		{"DD", "Datos Insuficientes"},
	} {
		statuses[st.code] = s.AddConservationStatus(st.code, st.name)
	}

	reef := s.AddHabitat("Arrecife de coral")
	open := s.AddHabitat("Mar abierto")
	coast := s.AddHabitat("Zona costera")

	plastic := s.AddThreat("Contaminación por plásticos")
	bycatch := s.AddThreat("Pesca incidental")
	warming := s.AddThreat("Calentamiento oceánico")

	s.AddSpecies(SpeciesSeed{
		CommonName: "Tortuga carey", ScientificName: "Eretmochelys imbricata", StatusID: statuses["CR"],
		Description: "Tortuga marina de arrecife con caparazón de placas superpuestas.",
		HabitatIDs:  []int64{reef, coast}, ThreatIDs: []int64{plastic, bycatch},
	})
	s.AddSpecies(SpeciesSeed{
		CommonName: "Ballena jorobada", ScientificName: "Megaptera novaeangliae", StatusID: statuses["LC"],
		Description: "Cetáceo migratorio conocido por sus cantos complejos.",
		HabitatIDs:  []int64{open}, ThreatIDs: []int64{bycatch},
	})
	s.AddSpecies(SpeciesSeed{
		CommonName: "Vaquita marina", ScientificName: "Phocoena sinus", StatusID: statuses["CR"],
		Description: "Marsopa endémica del Alto Golfo de California.",
		HabitatIDs:  []int64{coast}, ThreatIDs: []int64{bycatch},
	})
	s.AddSpecies(SpeciesSeed{
		CommonName: "Tiburón ballena", ScientificName: "Rhincodon typus", StatusID: statuses["EN"],
		Description: "El pez más grande del mundo; se alimenta de plancton.",
		HabitatIDs:  []int64{open, reef}, ThreatIDs: []int64{warming, bycatch},
	})
	s.AddSpecies(SpeciesSeed{
		CommonName: "Coral cuerno de alce", ScientificName: "Acropora palmata", StatusID: statuses["CR"],
		HabitatIDs: []int64{reef}, ThreatIDs: []int64{warming},
	})

	for _, p := range []struct {
		name  string
		price string
		stock int
	}{
		{"Peluche Tortuga Marina", "24.99", 50},
		{"Termo Océano Azul 500ml", "34.99", 30},
		{"Set de Pines Vida Marina", "15.99", 100},
		{"Camiseta Salva las Ballenas", "28.99", 25},
		{"Bolsa Reutilizable Coral", "12.99", 75},
		{"Pack Stickers Océano Limpio", "9.99", 200},
	} {
		s.AddProduct(p.name, decimal.RequireFromString(p.price), p.stock)
	}
	return s
}
